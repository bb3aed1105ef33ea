// File: internal/socket/socket_linux.go
//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux descriptor plumbing for the listening socket and accepted peers.

package socket

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/tcpreactor/api"
)

// listenBacklog caps the pending-accept queue. It is independent of the
// reactor's event queue capacity.
const listenBacklog = 5

// Listen opens a non-blocking IPv4 stream socket bound to the wildcard
// address on port and puts it in listening state. Port 0 asks the kernel
// for an ephemeral port; use BoundPort to discover it. On any failure the
// partially configured descriptor is closed before returning.
func Listen(port int) (int, error) {
	if port < 0 || port > 65535 {
		return -1, fmt.Errorf("%w: port %d out of range", api.ErrInvalidArgument, port)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("%w: create: %v", api.ErrSocketConfig, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("%w: SO_REUSEADDR: %v", api.ErrSocketConfig, err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("%w: port %d: %v", api.ErrBind, port, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("%w: set nonblocking: %v", api.ErrSocketConfig, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("%w: listen: %v", api.ErrSocketConfig, err)
	}
	return fd, nil
}

// Accept accepts one pending connection from the listening descriptor lfd.
// The returned descriptor is non-blocking and close-on-exec. The error is
// the raw errno; callers check unix.EAGAIN to detect a drained queue.
func Accept(lfd int) (int, string, error) {
	nfd, sa, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, "", err
	}
	return nfd, PeerAddr(sa), nil
}

// BoundPort reports the local port the listening descriptor is bound to.
func BoundPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, fmt.Errorf("getsockname: %w", err)
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, fmt.Errorf("%w: listener is not IPv4", api.ErrSocketConfig)
	}
	return in4.Port, nil
}

// PeerAddr formats sa as dotted-decimal IPv4 text. Peers without an IPv4
// address format as the empty string.
func PeerAddr(sa unix.Sockaddr) string {
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return ""
	}
	return net.IPv4(in4.Addr[0], in4.Addr[1], in4.Addr[2], in4.Addr[3]).String()
}

// Close tears a connection descriptor down. The shutdown is advisory; the
// descriptor is released either way.
func Close(fd int) error {
	_ = unix.Shutdown(fd, unix.SHUT_RDWR)
	return unix.Close(fd)
}
