//go:build linux

package reactor_test

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/momentics/tcpreactor/api"
	"github.com/momentics/tcpreactor/control"
	"github.com/momentics/tcpreactor/reactor"
)

func fixedHandler(h api.EventHandler) func() api.EventHandler {
	return func() api.EventHandler { return h }
}

func startLoop(t *testing.T, cfg reactor.Config) (*reactor.Loop, chan error) {
	t.Helper()
	if cfg.Handler == nil {
		cfg.Handler = fixedHandler(api.NopHandler{})
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = 64
	}
	if cfg.Metrics == nil {
		cfg.Metrics = control.NewMetrics(prometheus.NewRegistry())
	}
	l, err := reactor.New(cfg)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run() }()
	waitPort(t, l)
	return l, errCh
}

func waitPort(t *testing.T, l *reactor.Loop) int {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p := l.Port(); p > 0 {
			return p
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("loop did not report a bound port")
	return 0
}

func stopAndWait(t *testing.T, l *reactor.Loop, errCh chan error) {
	t.Helper()
	l.Stop()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not exit after Stop")
	}
}

func dialLoop(t *testing.T, l *reactor.Loop) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp4", fmt.Sprintf("127.0.0.1:%d", l.Port()))
	require.NoError(t, err)
	return conn
}

func recvEvent(t *testing.T, events chan string) string {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a handler event")
		return ""
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := reactor.New(reactor.Config{Capacity: 64})
	require.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = reactor.New(reactor.Config{
		Capacity: 0,
		Handler:  fixedHandler(api.NopHandler{}),
	})
	require.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestNewHoldsNoDescriptors(t *testing.T) {
	before := openDescriptors(t)
	for i := 0; i < 4; i++ {
		_, err := reactor.New(reactor.Config{
			Capacity: 8,
			Handler:  fixedHandler(api.NopHandler{}),
			Metrics:  control.NewMetrics(prometheus.NewRegistry()),
		})
		require.NoError(t, err)
	}
	require.Equal(t, before, openDescriptors(t))
}

func openDescriptors(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	require.NoError(t, err)
	return len(entries)
}

func TestEventOrderForOneConnection(t *testing.T) {
	events := make(chan string, 64)
	handler := &api.Callbacks{
		Start:      func() { events <- "start" },
		Stop:       func() { events <- "stop" },
		Connect:    func(addr string) { events <- "connect:" + addr },
		Disconnect: func(addr string) { events <- "disconnect:" + addr },
		Receive: func(addr string, data []byte) {
			events <- "receive:" + string(data)
		},
	}

	l, errCh := startLoop(t, reactor.Config{Handler: fixedHandler(handler)})

	require.Equal(t, "start", recvEvent(t, events))

	conn := dialLoop(t, l)
	require.Equal(t, "connect:127.0.0.1", recvEvent(t, events))

	_, err := conn.Write([]byte("ping"))
	require.NoError(t, err)
	require.Equal(t, "receive:ping", recvEvent(t, events))

	require.NoError(t, conn.Close())
	require.Equal(t, "disconnect:127.0.0.1", recvEvent(t, events))

	stopAndWait(t, l, errCh)
	require.Equal(t, "stop", recvEvent(t, events))
	require.Zero(t, l.Connections())
}

func TestEchoRoundTrip(t *testing.T) {
	l, errCh := startLoop(t, reactor.Config{Echo: true})
	defer stopAndWait(t, l, errCh)

	conn := dialLoop(t, l)
	defer conn.Close()

	_, err := conn.Write([]byte("ping"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	reply := make([]byte, 16)
	n, err := conn.Read(reply)
	require.NoError(t, err)
	require.Equal(t, "ping", string(reply[:n]))
}

func TestBackToBackWritesAreAllDelivered(t *testing.T) {
	var mu sync.Mutex
	var got []byte
	done := make(chan struct{}, 8)
	handler := &api.Callbacks{
		Receive: func(addr string, data []byte) {
			mu.Lock()
			got = append(got, data...)
			mu.Unlock()
			done <- struct{}{}
		},
	}

	l, errCh := startLoop(t, reactor.Config{Handler: fixedHandler(handler)})
	defer stopAndWait(t, l, errCh)

	conn := dialLoop(t, l)
	defer conn.Close()

	// Two immediate writes usually land before the loop polls again, so a
	// single readiness notification has to cover both.
	_, err := conn.Write([]byte("first."))
	require.NoError(t, err)
	_, err = conn.Write([]byte("second"))
	require.NoError(t, err)

	want := "first.second"
	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= len(want) {
			break
		}
		select {
		case <-done:
		case <-deadline:
			t.Fatalf("delivered %d of %d bytes before timeout", n, len(want))
		}
	}
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, want, string(got))
}

func TestEchoCompletesLargeBurst(t *testing.T) {
	l, errCh := startLoop(t, reactor.Config{Echo: true, Capacity: 16})
	defer stopAndWait(t, l, errCh)

	conn := dialLoop(t, l)
	defer conn.Close()

	// A burst far larger than the socket buffers forces short writes on
	// the echo path; every byte must still come back, in order.
	payload := bytes.Repeat([]byte("0123456789abcdef"), 64*1024) // 1 MiB
	writeErr := make(chan error, 1)
	go func() {
		_, err := conn.Write(payload)
		writeErr <- err
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(30*time.Second)))
	echoed := make([]byte, len(payload))
	_, err := io.ReadFull(conn, echoed)
	require.NoError(t, err)
	require.NoError(t, <-writeErr)
	require.True(t, bytes.Equal(payload, echoed), "echoed payload differs")
}

func TestConcurrentChurnLeavesRegistryEmpty(t *testing.T) {
	const clients = 50

	var connects, disconnects sync.WaitGroup
	connects.Add(clients)
	disconnects.Add(clients)
	handler := &api.Callbacks{
		Connect:    func(string) { connects.Done() },
		Disconnect: func(string) { disconnects.Done() },
	}

	metrics := control.NewMetrics(prometheus.NewRegistry())
	l, errCh := startLoop(t, reactor.Config{
		Handler: fixedHandler(handler),
		Metrics: metrics,
	})

	// The listen backlog is small, so cap the dial concurrency to what a
	// draining accept loop can absorb without SYN retransmission stalls.
	addr := fmt.Sprintf("127.0.0.1:%d", l.Port())
	sem := make(chan struct{}, 8)
	var dialers sync.WaitGroup
	for i := 0; i < clients; i++ {
		dialers.Add(1)
		go func() {
			defer dialers.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			conn, err := net.Dial("tcp4", addr)
			if err != nil {
				t.Errorf("dial: %v", err)
				return
			}
			_, _ = conn.Write([]byte("hello"))
			_ = conn.Close()
		}()
	}
	dialers.Wait()

	waitGroupDone(t, &connects, "connect notifications")
	waitGroupDone(t, &disconnects, "disconnect notifications")

	require.Eventually(t, func() bool { return l.Connections() == 0 },
		5*time.Second, 5*time.Millisecond)
	require.Equal(t, float64(clients), testutil.ToFloat64(metrics.ConnectionsTotal))
	require.Equal(t, float64(clients), testutil.ToFloat64(metrics.DisconnectsTotal))

	stopAndWait(t, l, errCh)
}

func TestStopWakesIdleLoop(t *testing.T) {
	stopped := make(chan struct{})
	handler := &api.Callbacks{Stop: func() { close(stopped) }}

	l, errCh := startLoop(t, reactor.Config{Handler: fixedHandler(handler)})

	// No traffic at all: only the wake-up path can release the wait.
	start := time.Now()
	stopAndWait(t, l, errCh)
	require.Less(t, time.Since(start), 3*time.Second)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop notification did not fire")
	}
}

func TestShutdownTearsDownRemainingClients(t *testing.T) {
	events := make(chan string, 64)
	handler := &api.Callbacks{
		Connect:    func(addr string) { events <- "connect" },
		Disconnect: func(addr string) { events <- "disconnect" },
	}

	l, errCh := startLoop(t, reactor.Config{Handler: fixedHandler(handler)})

	conn := dialLoop(t, l)
	defer conn.Close()
	require.Equal(t, "connect", recvEvent(t, events))
	require.Equal(t, 1, l.Connections())

	stopAndWait(t, l, errCh)
	require.Equal(t, "disconnect", recvEvent(t, events))
	require.Zero(t, l.Connections())

	// The server side closed the socket for real: the next read reports
	// EOF rather than hanging.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := conn.Read(make([]byte, 1))
	require.Error(t, err)
}

func TestPeerResetTearsDownClientOnly(t *testing.T) {
	events := make(chan string, 64)
	handler := &api.Callbacks{
		Connect:    func(addr string) { events <- "connect" },
		Disconnect: func(addr string) { events <- "disconnect" },
		Receive: func(addr string, data []byte) {
			events <- "receive:" + string(data)
		},
	}

	l, errCh := startLoop(t, reactor.Config{Handler: fixedHandler(handler), Echo: true})
	defer stopAndWait(t, l, errCh)

	doomed := dialLoop(t, l)
	require.Equal(t, "connect", recvEvent(t, events))

	// Linger zero turns Close into an immediate reset instead of an
	// orderly close handshake.
	require.NoError(t, doomed.(*net.TCPConn).SetLinger(0))
	require.NoError(t, doomed.Close())

	// The reset surfaces as an error event: exactly one disconnect and
	// no receive for the aborted client.
	require.Equal(t, "disconnect", recvEvent(t, events))
	require.Eventually(t, func() bool { return l.Connections() == 0 },
		5*time.Second, 5*time.Millisecond)

	// The reset is fatal for that client only; the next one gets full
	// service.
	conn := dialLoop(t, l)
	defer conn.Close()
	require.Equal(t, "connect", recvEvent(t, events))

	_, err := conn.Write([]byte("ping"))
	require.NoError(t, err)
	require.Equal(t, "receive:ping", recvEvent(t, events))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	reply := make([]byte, 16)
	n, err := conn.Read(reply)
	require.NoError(t, err)
	require.Equal(t, "ping", string(reply[:n]))
}

func waitGroupDone(t *testing.T, wg *sync.WaitGroup, what string) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
