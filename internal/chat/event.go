// Package chat routes inbound chat events to the right set of connections
// and keeps the typing registry consistent with what each connection did last.
package chat

import (
	"encoding/json"
	"errors"
)

// Inbound event names.
const (
	EventChatMessage = "chat message"
	EventTyping      = "typing"
	EventStopTyping  = "stop typing"
)

// Outbound event names. Chat messages keep their inbound name.
const (
	EventUserTyping        = "user typing"
	EventUserStoppedTyping = "user stopped typing"
)

// ErrUnknownEvent is returned by Dispatch for event names it does not route.
var ErrUnknownEvent = errors.New("unknown event")

// Frame is the envelope exchanged with clients. Data is relayed verbatim and
// never inspected.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newFrame(event string, data json.RawMessage) Frame {
	return Frame{Event: event, Data: data}
}
