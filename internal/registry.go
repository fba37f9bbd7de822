package internal

// Registry holds the live connections in accept order. It is owned by the
// reactor goroutine and does no locking of its own.
type Registry struct {
	conns map[ConnID]*Connection
	order []ConnID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[ConnID]*Connection)}
}

// Add stores c. Adding the same connection twice is a no-op.
func (r *Registry) Add(c *Connection) {
	if _, exists := r.conns[c.id]; exists {
		return
	}
	r.conns[c.id] = c
	r.order = append(r.order, c.id)
}

// Remove drops the entry for id and reports whether one was present.
func (r *Registry) Remove(id ConnID) bool {
	if _, exists := r.conns[id]; !exists {
		return false
	}
	delete(r.conns, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get looks up a connection by id.
func (r *Registry) Get(id ConnID) (*Connection, bool) {
	c, ok := r.conns[id]
	return c, ok
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

// Each calls fn for every connection in accept order. fn must not add or
// remove entries.
func (r *Registry) Each(fn func(c *Connection)) {
	for _, id := range r.order {
		fn(r.conns[id])
	}
}

// All returns the connections in accept order.
func (r *Registry) All() []*Connection {
	conns := make([]*Connection, 0, len(r.order))
	r.Each(func(c *Connection) {
		conns = append(conns, c)
	})
	return conns
}

// Snapshot describes every live connection.
func (r *Registry) Snapshot() []ConnInfo {
	infos := make([]ConnInfo, 0, len(r.order))
	r.Each(func(c *Connection) {
		infos = append(infos, c.info())
	})
	return infos
}
