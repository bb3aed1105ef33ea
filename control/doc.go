// Package control
// Author: momentics <momentics@gmail.com>
//
// Operational instrumentation for the connection server: Prometheus counters
// and gauges describing connection churn, traffic volume and shutdown
// wake-ups. Instruments are registered once per server instance against a
// caller-supplied registerer.
package control
