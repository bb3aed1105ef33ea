// File: reactor/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection state. A Client is created by a successful accept, owned by
// the registry for its whole lifetime and released exactly once at teardown.

package reactor

import (
	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/eapache/queue"
	uuid "github.com/satori/go.uuid"
)

// Client is one tracked connection. All access happens on the reactor
// goroutine; Client carries no locks.
type Client struct {
	fd   int
	id   string
	addr string

	// buf is the receive buffer, reused across reads. Payloads handed to
	// OnReceive alias it and expire when the callback returns.
	buf []byte

	// pending queues echo chunks that could not be written in full, in
	// arrival order. pendingOff is the write offset into the front chunk.
	pending    *queue.Queue
	pendingOff int
}

func newClient(fd int, addr string) *Client {
	return &Client{
		fd:      fd,
		id:      uuid.NewV4().String(),
		addr:    addr,
		buf:     mcache.Malloc(ReceiveBufferSize),
		pending: queue.New(),
	}
}

// FD returns the connection's socket descriptor.
func (c *Client) FD() int { return c.fd }

// Addr returns the peer address in dotted-decimal IPv4 form. It is empty
// for peers without an IPv4 address.
func (c *Client) Addr() string { return c.addr }

// ID returns the connection's stable diagnostic identifier.
func (c *Client) ID() string { return c.id }

func (c *Client) hasPending() bool {
	return c.pending.Length() > 0
}

// enqueue copies data onto the pending-write queue. The copy is required:
// data aliases the shared receive buffer, which the next read overwrites.
func (c *Client) enqueue(data []byte) {
	chunk := mcache.Malloc(len(data))
	copy(chunk, data)
	c.pending.Add(chunk)
}

// peekPending returns the unwritten remainder of the front chunk.
func (c *Client) peekPending() []byte {
	return c.pending.Peek().([]byte)[c.pendingOff:]
}

// advancePending consumes n written bytes from the front chunk, releasing
// it once fully written.
func (c *Client) advancePending(n int) {
	c.pendingOff += n
	front := c.pending.Peek().([]byte)
	if c.pendingOff >= len(front) {
		c.pending.Remove()
		mcache.Free(front)
		c.pendingOff = 0
	}
}

// release returns the client's buffers to the allocator.
func (c *Client) release() {
	if c.buf != nil {
		mcache.Free(c.buf)
		c.buf = nil
	}
	for c.pending.Length() > 0 {
		mcache.Free(c.pending.Remove().([]byte))
	}
	c.pendingOff = 0
}
