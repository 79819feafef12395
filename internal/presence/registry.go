// Package presence tracks which open connections are currently marked as
// typing, and under which username.
package presence

// ConnID identifies one open connection for its whole lifetime.
type ConnID string

// Registry maps connection ids to the username they are typing as.
// An entry exists only while its connection is typing.
//
// Registry is not safe for concurrent use. It is owned by a single router,
// which serializes every access.
type Registry struct {
	typing map[ConnID]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{typing: make(map[ConnID]string)}
}

// SetTyping marks id as typing, replacing any username stored for it.
func (r *Registry) SetTyping(id ConnID, username string) {
	r.typing[id] = username
}

// ClearTyping removes the entry for id and returns the username it held.
// The boolean is false when id was not typing, in which case nothing changes.
func (r *Registry) ClearTyping(id ConnID) (string, bool) {
	username, ok := r.typing[id]
	if !ok {
		return "", false
	}
	delete(r.typing, id)
	return username, true
}

// IsTyping reports whether id currently has an entry.
func (r *Registry) IsTyping(id ConnID) bool {
	_, ok := r.typing[id]
	return ok
}

// Len returns the number of connections currently typing.
func (r *Registry) Len() int {
	return len(r.typing)
}
