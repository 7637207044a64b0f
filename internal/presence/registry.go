package presence

import "sync"

// Channel is one writable push connection belonging to a user.
type Channel interface {
	Send(event string, payload any) error
	Close() error
}

// Registry maps user ids to their active push channel. It is process-local
// and safe for use from concurrent connection handlers. A user has at most
// one tracked channel; a later registration supersedes the earlier one
// without closing it.
type Registry struct {
	mu       sync.RWMutex
	channels map[int]Channel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[int]Channel)}
}

// Register records the channel as the user's active handle, replacing any
// prior handle.
func (r *Registry) Register(userID int, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[userID] = ch
}

// Unregister removes the user's entry only if the stored handle is still ch,
// so a stale disconnect never evicts a newer connection.
func (r *Registry) Unregister(userID int, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.channels[userID]; ok && current == ch {
		delete(r.channels, userID)
	}
}

// Lookup returns the user's active channel, if any.
func (r *Registry) Lookup(userID int) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[userID]
	return ch, ok
}

// Online reports whether the user has an active channel.
func (r *Registry) Online(userID int) bool {
	_, ok := r.Lookup(userID)
	return ok
}
