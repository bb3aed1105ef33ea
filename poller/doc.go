// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package poller provides the readiness multiplexer behind the reactor: an
// edge-triggered epoll instance on Linux, plus an eventfd-backed wake-up
// channel so a goroutine blocked in Wait can be released without a timeout.
package poller
