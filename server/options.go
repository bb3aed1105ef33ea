// File: server/options.go
// Package server defines functional options for the Server facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithPort overrides the default listening port.
func WithPort(port int) ServerOption {
	return func(s *Server) {
		s.cfg.Port = port
	}
}

// WithEventQueueCapacity overrides how many readiness events one poll
// round may deliver.
func WithEventQueueCapacity(capacity int) ServerOption {
	return func(s *Server) {
		s.cfg.EventQueueCapacity = capacity
	}
}

// WithEcho toggles echoing every received chunk back to its sender before
// the receive notification fires.
func WithEcho(enabled bool) ServerOption {
	return func(s *Server) {
		s.cfg.Echo = enabled
	}
}

// WithLogger routes diagnostics to the given logger.
func WithLogger(log *zap.Logger) ServerOption {
	return func(s *Server) {
		s.cfg.Logger = log
	}
}

// WithRegistry directs metrics registration to the given registerer, for
// example prometheus.DefaultRegisterer to publish on the process-wide
// registry. Without this option each server registers into its own private
// registry. Servers sharing one registerer collide on instrument names;
// give each its own.
func WithRegistry(reg prometheus.Registerer) ServerOption {
	return func(s *Server) {
		s.cfg.Registry = reg
	}
}
