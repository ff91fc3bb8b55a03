package realtime

import "sync"

// Registry maps user ids to their live connections. A user's bucket exists
// only while it holds at least one connection.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[*Client]struct{}
	conns int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[*Client]struct{})}
}

// Register adds c to userID's bucket.
func (r *Registry) Register(userID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.users[userID]
	if !ok {
		b = make(map[*Client]struct{})
		r.users[userID] = b
		wsUsers.Inc()
	}
	if _, dup := b[c]; dup {
		return
	}
	b[c] = struct{}{}
	r.conns++
	wsConns.Inc()
}

// Unregister removes c from userID's bucket, dropping the bucket when it
// becomes empty, and returns how many connections the user still has.
func (r *Registry) Unregister(userID string, c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.users[userID]
	if !ok {
		return 0
	}
	if _, ok := b[c]; ok {
		delete(b, c)
		r.conns--
		wsConns.Dec()
	}
	if len(b) == 0 {
		delete(r.users, userID)
		wsUsers.Dec()
		return 0
	}
	return len(b)
}

// FanOut sends an event to every live connection of userID and returns how
// many accepted it. Users without connections are a silent no-op.
func (r *Registry) FanOut(userID, event string, payload any) int {
	b, err := encode(event, payload)
	if err != nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for c := range r.users[userID] {
		if c.emitRaw(b) {
			n++
		}
	}
	return n
}

// Connections returns the number of live connections of userID.
func (r *Registry) Connections(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// Stats returns the number of users and connections.
func (r *Registry) Stats() (users, conns int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), r.conns
}
