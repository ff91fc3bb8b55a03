package realtime

import "sync"

// Groups tracks which connections have joined which rooms.
type Groups struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewGroups returns an empty set of room groups.
func NewGroups() *Groups {
	return &Groups{rooms: make(map[string]map[*Client]struct{})}
}

// Join subscribes c to roomID. Must be called from c's read goroutine.
func (g *Groups) Join(roomID string, c *Client) {
	g.mu.Lock()
	m, ok := g.rooms[roomID]
	if !ok {
		m = make(map[*Client]struct{})
		g.rooms[roomID] = m
	}
	m[c] = struct{}{}
	g.mu.Unlock()

	c.rooms[roomID] = struct{}{}
}

// Leave unsubscribes c from roomID. Must be called from c's read goroutine.
func (g *Groups) Leave(roomID string, c *Client) {
	g.remove(roomID, c)
	delete(c.rooms, roomID)
}

// LeaveAll unsubscribes c from every room it joined.
func (g *Groups) LeaveAll(c *Client) {
	for roomID := range c.rooms {
		g.remove(roomID, c)
	}
	clear(c.rooms)
}

func (g *Groups) remove(roomID string, c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.rooms[roomID]
	if !ok {
		return
	}
	delete(m, c)
	if len(m) == 0 {
		delete(g.rooms, roomID)
	}
}

// Broadcast sends an event to every member of roomID except the given
// connection (nil excludes nobody) and returns how many accepted it.
func (g *Groups) Broadcast(roomID, event string, payload any, except *Client) int {
	b, err := encode(event, payload)
	if err != nil {
		return 0
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for c := range g.rooms[roomID] {
		if c == except {
			continue
		}
		if c.emitRaw(b) {
			n++
		}
	}
	return n
}

// Members returns the number of connections in roomID.
func (g *Groups) Members(roomID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms[roomID])
}
