// File: poller/poller.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness event surface.

package poller

// EventKind encodes the readiness states reported for a descriptor.
type EventKind uint32

const (
	// EventReadable reports pending inbound data or, on the listening
	// descriptor, pending connections.
	EventReadable EventKind = 1 << iota
	// EventWritable reports that a previously short write can resume.
	EventWritable
	// EventClosed reports an error or hang-up condition. The descriptor is
	// no longer usable and its owner must tear it down.
	EventClosed
)

// String renders the kind as a pipe-separated flag list.
func (k EventKind) String() string {
	if k == 0 {
		return "none"
	}
	s := ""
	if k&EventReadable != 0 {
		s += "|readable"
	}
	if k&EventWritable != 0 {
		s += "|writable"
	}
	if k&EventClosed != 0 {
		s += "|closed"
	}
	return s[1:]
}

// Event is one readiness notification returned by Wait.
type Event struct {
	FD   int
	Kind EventKind
}

// Poller multiplexes readiness notifications for registered descriptors.
// All methods except Wake and Close must be called from the goroutine that
// calls Wait; Wake is safe from any goroutine at any time.
type Poller interface {
	// Add registers fd for edge-triggered read readiness.
	Add(fd int) error

	// ModReadWrite widens the registration of fd to read and write
	// readiness; ModRead narrows it back to read only.
	ModReadWrite(fd int) error
	ModRead(fd int) error

	// Remove deregisters fd. No further events for it are reported.
	Remove(fd int) error

	// Wait blocks until at least one registered descriptor is ready, then
	// fills events and returns the count. A zero count with a nil error
	// means the wait was interrupted or woken; callers re-check their
	// shutdown condition and wait again.
	Wait(events []Event) (int, error)

	// Wake forces a blocked Wait to return promptly. The wake-up itself is
	// consumed internally and never surfaces as an Event. Waking a closed
	// poller is a no-op.
	Wake() error

	// Close releases the poller's descriptors. Close is idempotent and
	// safe to race with Wake.
	Close() error
}
