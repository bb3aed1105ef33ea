// File: reactor/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

// Registry indexes every live client by socket descriptor. The descriptor
// is the stable handle the multiplexer reports, so lookup, insert and
// removal are all O(1). Confined to the reactor goroutine.
type Registry struct {
	clients map[int]*Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[int]*Client)}
}

// Add tracks c under its descriptor.
func (r *Registry) Add(c *Client) {
	r.clients[c.fd] = c
}

// Get resolves a descriptor to its client.
func (r *Registry) Get(fd int) (*Client, bool) {
	c, ok := r.clients[fd]
	return c, ok
}

// Remove untracks the client with the given descriptor. Removing the entry
// currently being dispatched is safe; removal of an unknown descriptor is
// a no-op.
func (r *Registry) Remove(fd int) {
	delete(r.clients, fd)
}

// Len reports the number of tracked clients. It equals the number of open
// client sockets at every point between dispatches.
func (r *Registry) Len() int {
	return len(r.clients)
}

// Drain empties the registry and returns the clients it tracked, in no
// particular order. Used for bulk teardown at shutdown.
func (r *Registry) Drain() []*Client {
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	r.clients = make(map[int]*Client)
	return out
}
