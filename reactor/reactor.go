// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral configuration for the single-goroutine event loop.

package reactor

import (
	"go.uber.org/zap"

	"github.com/momentics/tcpreactor/api"
	"github.com/momentics/tcpreactor/control"
)

// ReceiveBufferSize is the fixed per-connection receive buffer size. Reads
// larger than this arrive as multiple OnReceive deliveries.
const ReceiveBufferSize = 2048

// Config parameterizes one run of the event loop.
type Config struct {
	// Port is the IPv4 listening port. Port 0 binds a kernel-chosen
	// ephemeral port, reported by Port() once the loop is running.
	Port int

	// Capacity bounds how many readiness events one poll round returns.
	// It does not bound the number of tracked connections.
	Capacity int

	// Echo writes every received chunk back to its sender before the
	// receive notification fires.
	Echo bool

	// Handler resolves the active event handler. It is consulted before
	// every notification, so the handler can be swapped mid-run.
	Handler func() api.EventHandler

	// Logger receives reactor diagnostics. Nil disables logging.
	Logger *zap.Logger

	// Metrics receives instrumentation. Nil directs counts to an
	// unexported throwaway registry.
	Metrics *control.Metrics
}
