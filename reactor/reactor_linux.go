//go:build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux event loop: accept draining, edge-triggered receive draining,
// pending-write flushing and client teardown, all on one goroutine.

package reactor

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/tcpreactor/api"
	"github.com/momentics/tcpreactor/control"
	"github.com/momentics/tcpreactor/internal/socket"
	"github.com/momentics/tcpreactor/poller"
)

// Loop drives accept, receive and teardown for one listening socket. A Loop
// is single-use: construct with New, call Run once, request shutdown with
// Stop from any goroutine.
type Loop struct {
	cfg     Config
	log     *zap.Logger
	metrics *control.Metrics

	poll     poller.Poller
	registry *Registry
	events   []poller.Event

	listenFD int
	port     int32
	conns    int32
	stopping int32
	started  int32

	// failure is a loop-fatal condition recorded during dispatch. Reactor
	// goroutine only; Run reports it after the drain-out completes.
	failure error
}

// New validates cfg and allocates the loop. Descriptors are not acquired
// until Run, so a loop that is constructed but never run holds no kernel
// resources.
func New(cfg Config) (*Loop, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("%w: nil handler source", api.ErrInvalidArgument)
	}
	if cfg.Capacity < 1 {
		return nil, fmt.Errorf("%w: event queue capacity %d", api.ErrInvalidArgument, cfg.Capacity)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = control.NewMetrics(prometheus.NewRegistry())
	}
	return &Loop{
		cfg:      cfg,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		registry: NewRegistry(),
		events:   make([]poller.Event, cfg.Capacity),
		listenFD: -1,
	}, nil
}

// Run acquires the poller, binds the listening socket, fires the start
// notification and processes readiness events until Stop is observed or
// the multiplexer fails. It returns nil after an orderly shutdown and
// ErrListenerFailed when the listening socket itself died.
func (l *Loop) Run() error {
	p, err := poller.New()
	if err != nil {
		return err
	}
	l.poll = p

	lfd, err := socket.Listen(l.cfg.Port)
	if err != nil {
		l.poll.Close()
		return err
	}
	l.listenFD = lfd

	if port, perr := socket.BoundPort(lfd); perr == nil {
		atomic.StoreInt32(&l.port, int32(port))
	} else {
		atomic.StoreInt32(&l.port, int32(l.cfg.Port))
	}

	if err := l.poll.Add(lfd); err != nil {
		unix.Close(lfd)
		l.poll.Close()
		return fmt.Errorf("%w: register listener: %v", api.ErrSocketConfig, err)
	}

	// Publishes l.poll to Stop: a load of started observing 1 also
	// observes the poller field.
	atomic.StoreInt32(&l.started, 1)

	l.log.Info("listening",
		zap.Int("port", l.Port()),
		zap.Int("event_queue", len(l.events)))
	l.handler().OnStart()

	loopErr := l.pollLoop()
	l.shutdown()
	return loopErr
}

// Stop requests shutdown and wakes the poller so a blocked wait returns
// promptly. Safe from any goroutine; repeat calls are no-ops. Before the
// poller exists there is nothing to wake: the flag alone is enough, since
// the loop checks it on entry.
func (l *Loop) Stop() {
	if !atomic.CompareAndSwapInt32(&l.stopping, 0, 1) {
		return
	}
	l.metrics.Wakeups.Inc()
	if atomic.LoadInt32(&l.started) == 0 {
		return
	}
	if err := l.poll.Wake(); err != nil {
		l.log.Warn("wake failed", zap.Error(err))
	}
}

// Port reports the bound listening port once Run has set it up. Useful
// when the loop was configured with port 0.
func (l *Loop) Port() int {
	return int(atomic.LoadInt32(&l.port))
}

// Connections reports the number of currently tracked clients. The count
// is mirrored atomically so observers outside the reactor goroutine never
// touch the registry itself.
func (l *Loop) Connections() int {
	return int(atomic.LoadInt32(&l.conns))
}

func (l *Loop) handler() api.EventHandler {
	return l.cfg.Handler()
}

func (l *Loop) pollLoop() error {
	for atomic.LoadInt32(&l.stopping) == 0 {
		n, err := l.poll.Wait(l.events)
		if err != nil {
			l.log.Error("poll wait failed", zap.Error(err))
			return err
		}
		for i := 0; i < n; i++ {
			l.dispatch(l.events[i])
		}
	}
	return l.failure
}

func (l *Loop) dispatch(ev poller.Event) {
	if ev.FD == l.listenFD {
		if ev.Kind&poller.EventClosed != 0 {
			// A dead listener cannot be recovered; drain out.
			l.log.Error("listener failed", zap.Stringer("kind", ev.Kind))
			l.failure = api.ErrListenerFailed
			atomic.StoreInt32(&l.stopping, 1)
			return
		}
		l.acceptPending()
		return
	}

	c, ok := l.registry.Get(ev.FD)
	if !ok {
		// Torn down earlier in this round.
		return
	}
	if ev.Kind&poller.EventClosed != 0 || ev.Kind&(poller.EventReadable|poller.EventWritable) == 0 {
		l.log.Debug("connection lost", zap.Int("fd", c.fd), zap.Stringer("kind", ev.Kind))
		l.teardown(c)
		return
	}
	if ev.Kind&poller.EventWritable != 0 {
		if !l.flushPending(c) {
			return
		}
	}
	if ev.Kind&poller.EventReadable != 0 {
		l.receive(c)
	}
}

// acceptPending drains the listener. Edge-triggered readiness reports the
// queue transition only once, so every pending connection must be accepted
// before the next wait.
func (l *Loop) acceptPending() {
	for {
		fd, addr, err := socket.Accept(l.listenFD)
		if err != nil {
			switch {
			case errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK):
				return
			case errors.Is(err, unix.EINTR) || errors.Is(err, unix.ECONNABORTED):
				continue
			default:
				// Likely persistent (EMFILE and friends): retrying now
				// would spin, so give up until the next readiness edge.
				l.metrics.AcceptErrors.Inc()
				l.log.Warn("accept failed", zap.Error(err))
				return
			}
		}
		l.admit(fd, addr)
	}
}

// admit builds the client for an accepted descriptor. The connect
// notification fires only after the full setup sequence succeeds; a partial
// setup is discarded without any notification.
func (l *Loop) admit(fd int, addr string) {
	c := newClient(fd, addr)
	l.registry.Add(c)
	if err := l.poll.Add(fd); err != nil {
		l.registry.Remove(fd)
		c.release()
		unix.Close(fd)
		l.metrics.AcceptErrors.Inc()
		l.log.Warn("client registration failed", zap.Int("fd", fd), zap.Error(err))
		return
	}
	atomic.AddInt32(&l.conns, 1)
	l.metrics.ConnectionsTotal.Inc()
	l.metrics.OpenConnections.Inc()
	l.log.Debug("client connected",
		zap.Int("fd", fd),
		zap.String("addr", addr),
		zap.String("conn_id", c.id))
	l.handler().OnConnect(addr)
}

// receive drains the socket until it would block. Each chunk is delivered
// immediately; nothing is buffered across calls.
func (l *Loop) receive(c *Client) {
	for {
		n, err := unix.Read(c.fd, c.buf)
		if n > 0 {
			l.metrics.BytesReceived.Add(float64(n))
			data := c.buf[:n]
			if l.cfg.Echo {
				if !l.echo(c, data) {
					return
				}
			}
			l.handler().OnReceive(c.addr, data)
			continue
		}
		if n == 0 && err == nil {
			// Orderly close from the peer.
			l.teardown(c)
			return
		}
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		l.log.Debug("read failed", zap.Int("fd", c.fd), zap.Error(err))
		l.teardown(c)
		return
	}
}

// echo writes data back to its sender before the receive notification.
// A short write queues the unsent tail and arms write interest; a hard
// write error tears the client down. Returns false when the client no
// longer exists.
func (l *Loop) echo(c *Client, data []byte) bool {
	if c.hasPending() {
		// Earlier chunks are still queued; preserve order behind them.
		c.enqueue(data)
		return true
	}
	sent := 0
	for sent < len(data) {
		n, err := unix.Write(c.fd, data[sent:])
		if n > 0 {
			sent += n
			continue
		}
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			l.metrics.BytesEchoed.Add(float64(sent))
			c.enqueue(data[sent:])
			if merr := l.poll.ModReadWrite(c.fd); merr != nil {
				l.log.Warn("arm write interest failed", zap.Int("fd", c.fd), zap.Error(merr))
				l.teardown(c)
				return false
			}
			return true
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		l.log.Debug("echo write failed", zap.Int("fd", c.fd), zap.Error(err))
		l.teardown(c)
		return false
	}
	l.metrics.BytesEchoed.Add(float64(sent))
	return true
}

// flushPending resumes queued echo writes after a writable notification.
// Write interest is dropped once the queue empties. Returns false when the
// client was torn down.
func (l *Loop) flushPending(c *Client) bool {
	for c.hasPending() {
		rest := c.peekPending()
		n, err := unix.Write(c.fd, rest)
		if n > 0 {
			l.metrics.BytesEchoed.Add(float64(n))
			c.advancePending(n)
			continue
		}
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			// Still write-armed; the next writable edge resumes.
			return true
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		l.log.Debug("flush write failed", zap.Int("fd", c.fd), zap.Error(err))
		l.teardown(c)
		return false
	}
	if err := l.poll.ModRead(c.fd); err != nil {
		l.log.Warn("drop write interest failed", zap.Int("fd", c.fd), zap.Error(err))
		l.teardown(c)
		return false
	}
	return true
}

// teardown notifies, unlinks and destroys one client. The disconnect fires
// first, while the client state is still addressable.
func (l *Loop) teardown(c *Client) {
	l.handler().OnDisconnect(c.addr)
	l.registry.Remove(c.fd)
	l.destroy(c)
}

func (l *Loop) destroy(c *Client) {
	_ = l.poll.Remove(c.fd)
	_ = socket.Close(c.fd)
	c.release()
	atomic.AddInt32(&l.conns, -1)
	l.metrics.OpenConnections.Dec()
	l.metrics.DisconnectsTotal.Inc()
	l.log.Debug("client disconnected",
		zap.Int("fd", c.fd),
		zap.String("addr", c.addr),
		zap.String("conn_id", c.id))
}

// shutdown tears down every remaining client, then the listener and the
// poller, and fires the stop notification last.
func (l *Loop) shutdown() {
	for _, c := range l.registry.Drain() {
		l.handler().OnDisconnect(c.addr)
		l.destroy(c)
	}
	unix.Close(l.listenFD)
	l.listenFD = -1
	l.poll.Close()
	l.handler().OnStop()
	l.log.Info("stopped")
}
