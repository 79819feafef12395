package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Tyrowin/chatrelay/internal/presence"
)

// Router applies inbound events to the typing registry and decides who hears
// about them.
//
// Router is not safe for concurrent use. Callers must run each method to
// completion before starting the next one, so that a registry update and the
// broadcasts it triggers are observed as a single step.
type Router struct {
	registry *presence.Registry
	emitter  Emitter
	log      *slog.Logger
}

// NewRouter returns a Router that records typing state in registry and
// delivers outbound frames through emitter.
func NewRouter(registry *presence.Registry, emitter Emitter, log *slog.Logger) *Router {
	return &Router{registry: registry, emitter: emitter, log: log}
}

// Connect records a new connection. New connections start idle and are not
// announced to anyone.
func (r *Router) Connect(id presence.ConnID) {
	r.log.Debug("Connection opened", "conn", id)
}

// Typing marks id as typing under username and tells every other connection.
// Repeated typing events are broadcast every time.
func (r *Router) Typing(id presence.ConnID, username json.RawMessage) {
	r.registry.SetTyping(id, string(username))
	r.log.Debug("User typing", "conn", id, "username", string(username))
	r.emitter.EmitExcept(id, newFrame(EventUserTyping, username))
}

// StopTyping clears the typing state of id. Others are only told when id was
// actually typing.
func (r *Router) StopTyping(id presence.ConnID, username json.RawMessage) {
	if _, ok := r.registry.ClearTyping(id); !ok {
		r.log.Debug("Ignoring stop typing from idle connection", "conn", id)
		return
	}
	r.log.Debug("User stopped typing", "conn", id, "username", string(username))
	r.emitter.EmitExcept(id, newFrame(EventUserStoppedTyping, username))
}

// ChatMessage relays msg to every connection, the sender included. A sender
// that was typing is first reported as having stopped.
func (r *Router) ChatMessage(id presence.ConnID, msg json.RawMessage) {
	r.cancelTyping(id)
	r.log.Debug("Relaying chat message", "conn", id, "size", len(msg))
	r.emitter.EmitAll(newFrame(EventChatMessage, msg))
}

// Disconnect forgets id. A connection that was typing is reported as having
// stopped to everyone else.
func (r *Router) Disconnect(id presence.ConnID) {
	r.cancelTyping(id)
	r.log.Debug("Connection closed", "conn", id)
}

// Dispatch routes a decoded inbound frame from id.
func (r *Router) Dispatch(id presence.ConnID, frame Frame) error {
	switch frame.Event {
	case EventChatMessage:
		r.ChatMessage(id, frame.Data)
	case EventTyping:
		r.Typing(id, frame.Data)
	case EventStopTyping:
		r.StopTyping(id, frame.Data)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event)
	}
	return nil
}

// IsTyping reports whether id is currently typing.
func (r *Router) IsTyping(id presence.ConnID) bool {
	return r.registry.IsTyping(id)
}

// TypingCount returns how many connections are currently typing.
func (r *Router) TypingCount() int {
	return r.registry.Len()
}

func (r *Router) cancelTyping(id presence.ConnID) {
	username, ok := r.registry.ClearTyping(id)
	if !ok {
		return
	}
	r.log.Debug("Typing cancelled", "conn", id, "username", username)
	r.emitter.EmitExcept(id, newFrame(EventUserStoppedTyping, json.RawMessage(username)))
}
