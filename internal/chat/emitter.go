package chat

import "github.com/Tyrowin/chatrelay/internal/presence"

//go:generate mockgen -source=emitter.go -destination=mocks/emitter_mock.go -package=mocks

// Emitter hands outbound frames to the connections that should receive them.
// Implementations must not block on network I/O.
type Emitter interface {
	// EmitAll sends frame to every open connection.
	EmitAll(frame Frame)
	// EmitExcept sends frame to every open connection except one.
	EmitExcept(except presence.ConnID, frame Frame)
}
