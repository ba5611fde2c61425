//go:build linux

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Event is a counting notification primitive backed by a semaphore-mode
// eventfd. Semaphore mode means each [Event.Notify] is consumed by exactly
// one successful [Event.Read], so notifications arriving between dispatch
// passes are never lost.
//
// An Event may be watched by a [Reactor] by registering its [Event.ID]; the
// read callback should call [Event.Read] to consume one notification.
//
// The caller owns the Event and must [Event.Close] it, after unregistering
// it from any reactor watching it.
type Event struct {
	fd int
}

// NewEvent creates a new Event.
func NewEvent() (*Event, error) {
	fd, err := unix.Eventfd(0, unix.EFD_SEMAPHORE|unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: eventfd create: %w", err)
	}
	return &Event{fd: fd}, nil
}

// Notify increments the counter by one, waking any reactor watching the
// Event. Panics on OS error; the counter saturating is not expected in
// normal use.
func (e *Event) Notify() {
	if err := eventfdWrite(e.fd, 1); err != nil {
		panic(fmt.Sprintf("reactor: event notify failed: fd=%d, err=%v", e.fd, err))
	}
}

// Read attempts a single semaphore decrement. It returns true on success,
// or false if the counter was zero.
func (e *Event) Read() bool {
	_, err := eventfdRead(e.fd)
	return err == nil
}

// Clear drains the counter to zero.
func (e *Event) Clear() {
	for e.Read() {
	}
}

// ID returns the underlying file descriptor, for use with
// [Reactor.Register].
func (e *Event) ID() int {
	return e.fd
}

// Close releases the file descriptor. The Event must not still be
// registered with a reactor. Closing an Event twice panics.
func (e *Event) Close() {
	if e.fd == -1 {
		panic("reactor: event closed twice")
	}
	if err := closeFd(e.fd); err != nil {
		panic(fmt.Sprintf("reactor: event close failed: fd=%d, err=%v", e.fd, err))
	}
	e.fd = -1
}
