//go:build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for platforms without epoll.

package reactor

import "github.com/momentics/tcpreactor/api"

// Loop is unavailable on this platform.
type Loop struct{}

// New reports that the event loop is unsupported here.
func New(Config) (*Loop, error) {
	return nil, api.ErrNotSupported
}

func (*Loop) Run() error { return api.ErrNotSupported }

func (*Loop) Stop() {}

func (*Loop) Port() int { return 0 }

func (*Loop) Connections() int { return 0 }
