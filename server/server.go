package server

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/momentics/tcpreactor/api"
	"github.com/momentics/tcpreactor/control"
	"github.com/momentics/tcpreactor/reactor"
)

// New builds a Server delivering events to handler. A nil handler installs
// the no-op handler; such a server accepts and serves connections but
// notifies nobody.
func New(handler api.EventHandler, opts ...ServerOption) (*Server, error) {
	s := &Server{cfg: DefaultConfig()}
	for _, o := range opts {
		o(s)
	}
	if s.cfg.Port < 0 || s.cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", api.ErrInvalidArgument, s.cfg.Port)
	}
	if s.cfg.EventQueueCapacity < 1 {
		return nil, fmt.Errorf("%w: event queue capacity %d", api.ErrInvalidArgument, s.cfg.EventQueueCapacity)
	}
	if s.cfg.Logger == nil {
		s.cfg.Logger = zap.NewNop()
	}
	s.log = s.cfg.Logger
	s.metrics = control.NewMetrics(s.cfg.Registry)
	if handler == nil {
		handler = api.NopHandler{}
	}
	s.handler.store(handler)
	return s, nil
}

// SetHandler replaces the active event handler. A nil handler installs the
// no-op handler. The swap becomes visible to the event loop before its
// next notification, so replacing a handler mid-run is safe.
func (s *Server) SetHandler(h api.EventHandler) {
	if h == nil {
		h = api.NopHandler{}
	}
	s.handler.store(h)
}

// Run binds the configured port and drives the event loop until Stop is
// observed. It blocks for the server's whole lifetime and returns nil
// after an orderly shutdown. A server that is already running reports
// ErrServerRunning; a closed one reports ErrServerClosed. After an
// orderly return the server is idle again and may be re-run; the run
// path re-initializes the listening socket from scratch.
func (s *Server) Run() error {
	s.mu.Lock()
	switch s.state {
	case stateClosed:
		s.mu.Unlock()
		return api.ErrServerClosed
	case stateRunning:
		s.mu.Unlock()
		return api.ErrServerRunning
	}
	loop, err := reactor.New(reactor.Config{
		Port:     s.cfg.Port,
		Capacity: s.cfg.EventQueueCapacity,
		Echo:     s.cfg.Echo,
		Handler:  s.handler.load,
		Logger:   s.log,
		Metrics:  s.metrics,
	})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.loop = loop
	s.state = stateRunning
	s.mu.Unlock()

	err = loop.Run()

	s.mu.Lock()
	s.loop = nil
	s.state = stateIdle
	s.mu.Unlock()
	return err
}

// Stop requests shutdown of a running server. It only flips the shutdown
// flag and wakes the event loop; it does not block until the loop exits.
// Safe from any goroutine, signal handlers included. Stopping a server
// that is not running is a no-op; a stop request does not carry over into
// a later Run.
func (s *Server) Stop() {
	s.mu.Lock()
	loop := s.loop
	s.mu.Unlock()
	if loop != nil {
		loop.Stop()
	}
}

// Close makes the server terminally unusable. Closing an already closed
// server is a no-op; closing one that is still running is refused.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateRunning {
		return api.ErrServerRunning
	}
	s.state = stateClosed
	return nil
}

// Port reports the actual listening port while running, which matters when
// the server was configured with port 0. Otherwise it reports the
// configured port.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop != nil {
		return s.loop.Port()
	}
	return s.cfg.Port
}

// Connections reports the number of currently tracked client connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop != nil {
		return s.loop.Connections()
	}
	return 0
}
