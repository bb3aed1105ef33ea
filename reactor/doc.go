// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor implements the single-goroutine, edge-triggered event
// loop at the core of the server: accept draining, per-connection receive
// draining, optional verified echo and client lifecycle management over an
// epoll-backed readiness poller.
package reactor
