package server

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/momentics/tcpreactor/api"
	"github.com/momentics/tcpreactor/control"
	"github.com/momentics/tcpreactor/reactor"
)

// Default listening parameters, matching the stock binary.
const (
	DefaultPort               = 5033
	DefaultEventQueueCapacity = 64
)

// Config holds all server-side configuration parameters.
type Config struct {
	Port               int                   // IPv4 listening port (0 = kernel-chosen)
	EventQueueCapacity int                   // readiness events handled per poll round
	Echo               bool                  // write received chunks back to their sender
	Logger             *zap.Logger           // diagnostics sink (nil = silent)
	Registry           prometheus.Registerer // metrics destination (nil = registry private to this server)
}

// DefaultConfig returns sensible defaults. The metrics registry is left
// nil: every default-configured server gets its own private registry, so
// any number of them can coexist in one process.
func DefaultConfig() *Config {
	return &Config{
		Port:               DefaultPort,
		EventQueueCapacity: DefaultEventQueueCapacity,
		Echo:               false,
		Logger:             zap.NewNop(),
	}
}

type serverState int

const (
	stateIdle serverState = iota
	stateRunning
	stateClosed
)

// Server is the public facade over the event loop: it owns the instance
// state machine, the swappable handler slot and the metrics set, and hands
// a fresh reactor loop to every run.
type Server struct {
	cfg     *Config
	log     *zap.Logger
	metrics *control.Metrics

	handler atomicHandler

	mu    sync.Mutex
	state serverState
	loop  *reactor.Loop
}

// atomicHandler is the swappable handler slot. The box keeps the stored
// concrete type constant, which atomic.Value requires.
type atomicHandler struct {
	v atomic.Value // handlerBox
}

type handlerBox struct{ h api.EventHandler }

func (a *atomicHandler) store(h api.EventHandler) {
	a.v.Store(handlerBox{h})
}

func (a *atomicHandler) load() api.EventHandler {
	return a.v.Load().(handlerBox).h
}
