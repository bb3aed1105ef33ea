// File: poller/epoll_linux.go
//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7) poller with an eventfd wake-up descriptor.

package poller

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/momentics/tcpreactor/api"
)

type epollPoller struct {
	epfd    int
	wakeFD  int
	scratch []unix.EpollEvent

	// mu serializes Wake against Close. Once closed, the descriptor
	// numbers may be reused by the kernel and must not be written.
	mu     sync.Mutex
	closed bool
}

// New constructs the epoll-backed poller. The eventfd wake descriptor is
// registered level-triggered so a Wake issued between Wait calls is still
// observed by the next Wait.
func New() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd create: %w", err)
	}
	p := &epollPoller{epfd: epfd, wakeFD: wfd}
	if err := p.ctl(unix.EPOLL_CTL_ADD, wfd, unix.EPOLLIN); err != nil {
		unix.Close(wfd)
		unix.Close(epfd)
		return nil, fmt.Errorf("register wake descriptor: %w", err)
	}
	return p, nil
}

func (p *epollPoller) ctl(op, fd int, mask uint32) error {
	return unix.EpollCtl(p.epfd, op, fd, &unix.EpollEvent{Events: mask, Fd: int32(fd)})
}

func (p *epollPoller) Add(fd int) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, unix.EPOLLIN|unix.EPOLLET)
}

func (p *epollPoller) ModReadWrite(fd int) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, unix.EPOLLIN|unix.EPOLLOUT|unix.EPOLLET)
}

func (p *epollPoller) ModRead(fd int) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, unix.EPOLLIN|unix.EPOLLET)
}

func (p *epollPoller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks with no timeout. EINTR and wake-only rounds report zero
// events so the caller can re-check its shutdown flag.
func (p *epollPoller) Wait(events []Event) (int, error) {
	if len(events) == 0 {
		return 0, api.ErrInvalidArgument
	}
	if len(p.scratch) < len(events) {
		p.scratch = make([]unix.EpollEvent, len(events))
	}
	n, err := unix.EpollWait(p.epfd, p.scratch[:len(events)], -1)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	out := 0
	for i := 0; i < n; i++ {
		raw := p.scratch[i]
		fd := int(raw.Fd)
		if fd == p.wakeFD {
			p.drainWake()
			continue
		}
		var kind EventKind
		if raw.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			kind |= EventClosed
		}
		if raw.Events&unix.EPOLLIN != 0 {
			kind |= EventReadable
		}
		if raw.Events&unix.EPOLLOUT != 0 {
			kind |= EventWritable
		}
		events[out] = Event{FD: fd, Kind: kind}
		out++
	}
	return out, nil
}

// Wake adds to the eventfd counter. EAGAIN means the counter is already
// saturated and a wake-up is pending, which is good enough. Waking a
// closed poller does nothing: a stop request may race loop completion,
// and the descriptor number may already belong to someone else.
func (p *epollPoller) Wake() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	var one [8]byte
	one[0] = 1
	_, err := unix.Write(p.wakeFD, one[:])
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("wake write: %w", err)
	}
	return nil
}

func (p *epollPoller) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(p.wakeFD, buf[:])
}

func (p *epollPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	err := unix.Close(p.wakeFD)
	if cerr := unix.Close(p.epfd); err == nil {
		err = cerr
	}
	return err
}
