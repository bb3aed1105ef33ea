// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package socket wraps the raw descriptor plumbing for the IPv4 listening
// socket and accepted connections: create/bind/listen, non-blocking accept,
// peer address formatting and descriptor teardown.
package socket
