// File: poller/poller_stub.go
//go:build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub for platforms without epoll.

package poller

import "github.com/momentics/tcpreactor/api"

// New reports that readiness polling is unavailable on this platform.
func New() (Poller, error) {
	return nil, api.ErrNotSupported
}
