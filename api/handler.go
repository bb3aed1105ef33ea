// File: api/handler.go
// Package api defines the connection event handler contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// EventHandler receives lifecycle and data events from a running server.
// Every method is invoked synchronously on the reactor goroutine, in event
// order; a handler that blocks stalls every connection on the server.
type EventHandler interface {
	// OnStart fires once per run, after the listening socket is ready and
	// before the first connection can be dispatched.
	OnStart()

	// OnStop fires once per run, after the event loop has exited and all
	// connections have been torn down.
	OnStop()

	// OnConnect fires exactly once per accepted connection, before any
	// OnReceive for it. addr is the peer address in dotted-decimal IPv4
	// form; it is empty for peers with no IPv4 address.
	OnConnect(addr string)

	// OnDisconnect fires exactly once per connected peer, whether the peer
	// closed, an I/O error occurred, or the server shut down. No further
	// events for addr follow.
	OnDisconnect(addr string)

	// OnReceive delivers a chunk of inbound bytes exactly as read from the
	// socket, with no framing or decoding applied. data is only valid for
	// the duration of the call; the underlying buffer is reused for
	// subsequent reads.
	OnReceive(addr string, data []byte)
}

// Callbacks adapts plain functions to EventHandler. Nil fields are skipped,
// so applications implement only the events they care about.
type Callbacks struct {
	Start      func()
	Stop       func()
	Connect    func(addr string)
	Disconnect func(addr string)
	Receive    func(addr string, data []byte)
}

var _ EventHandler = (*Callbacks)(nil)

func (c *Callbacks) OnStart() {
	if c.Start != nil {
		c.Start()
	}
}

func (c *Callbacks) OnStop() {
	if c.Stop != nil {
		c.Stop()
	}
}

func (c *Callbacks) OnConnect(addr string) {
	if c.Connect != nil {
		c.Connect(addr)
	}
}

func (c *Callbacks) OnDisconnect(addr string) {
	if c.Disconnect != nil {
		c.Disconnect(addr)
	}
}

func (c *Callbacks) OnReceive(addr string, data []byte) {
	if c.Receive != nil {
		c.Receive(addr, data)
	}
}

// NopHandler ignores every event. It backs servers created without a handler.
type NopHandler struct{}

var _ EventHandler = NopHandler{}

func (NopHandler) OnStart()                 {}
func (NopHandler) OnStop()                  {}
func (NopHandler) OnConnect(string)         {}
func (NopHandler) OnDisconnect(string)      {}
func (NopHandler) OnReceive(string, []byte) {}
