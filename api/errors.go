// File: api/errors.go
// Package api defines common error values for tcpreactor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "fmt"

// Common errors used across the library. Setup failures returned by Run wrap
// ErrBind or ErrSocketConfig so callers can tell an occupied address apart
// from a descriptor-configuration problem with errors.Is. ErrListenerFailed
// reports a listening socket that died mid-run; Run returns it after the
// drain-out, so it is distinguishable from a requested stop, which returns
// nil.
var (
	ErrServerRunning   = fmt.Errorf("server already running")
	ErrServerClosed    = fmt.Errorf("server is closed")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrNotSupported    = fmt.Errorf("operation not supported on this platform")
	ErrBind            = fmt.Errorf("address bind failed")
	ErrSocketConfig    = fmt.Errorf("socket configuration failed")
	ErrListenerFailed  = fmt.Errorf("listening socket failed")
)
