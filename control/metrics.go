// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus instruments for the connection server. One Metrics value is
// built per server instance and threaded through the reactor.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tcpreactor"

// Metrics aggregates the server's Prometheus instruments.
type Metrics struct {
	OpenConnections  prometheus.Gauge
	ConnectionsTotal prometheus.Counter
	DisconnectsTotal prometheus.Counter
	AcceptErrors     prometheus.Counter
	BytesReceived    prometheus.Counter
	BytesEchoed      prometheus.Counter
	Wakeups          prometheus.Counter
}

// NewMetrics registers the instrument set against reg. A nil reg gets a
// private registry, so independently constructed instances never collide.
// Publishing is an explicit choice: pass prometheus.DefaultRegisterer (or
// any shared registerer) to expose the instruments for scraping, one
// instance per registerer. Registering two instances against the same
// registerer panics, per Prometheus convention.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		OpenConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Number of currently tracked client connections",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted client connections",
		}),
		DisconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total number of client disconnects, regardless of cause",
		}),
		AcceptErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_errors_total",
			Help:      "Total number of failed accept attempts",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total bytes read from client connections",
		}),
		BytesEchoed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_echoed_total",
			Help:      "Total bytes written back to clients in echo mode",
		}),
		Wakeups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wakeups_total",
			Help:      "Total number of explicit event-loop wake-ups",
		}),
	}
}
