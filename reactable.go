//go:build linux

package reactor

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Reactable binds a watched file descriptor to its readiness callbacks. It
// is created by [Reactor.Register] and torn down by [Reactor.Unregister];
// all other interaction is mediated by the reactor.
type Reactable struct {
	fd           int
	onReadReady  func()
	onWriteReady func()

	// mu guards the three fields below. The dispatch goroutine flips
	// isExecuting under mu, which is what makes Unregister's
	// destroy-now-vs-defer decision atomic with respect to it.
	mu          sync.Mutex
	isExecuting bool
	removed     bool
	finished    chan struct{} // closed when a deferred unregistration completes
}

// ReactOn selects which readiness directions [Reactor.ModifyRegistration]
// watches.
type ReactOn int

const (
	// ReactOnReadOnly watches read readiness (and remote hang-up).
	ReactOnReadOnly ReactOn = iota
	// ReactOnWriteOnly watches write readiness.
	ReactOnWriteOnly
	// ReactOnReadWrite watches both directions.
	ReactOnReadWrite
)

// Register adds fd to the watched set. The reactor watches read readiness
// (plus remote hang-up) if onReadReady is non-nil, and write readiness if
// onWriteReady is non-nil. Callbacks run on the goroutine executing
// [Reactor.Run], with no reactor locks held.
//
// fd must remain open until Unregister returns, or, if teardown was
// deferred, until [Reactor.WaitForUnregisteredReactable] reports
// completion.
//
// Safe to call from any goroutine, including from inside a callback.
// Panics if the kernel rejects the registration.
func (r *Reactor) Register(fd int, onReadReady, onWriteReady func()) *Reactable {
	var events uint32
	if onReadReady != nil {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if onWriteReady != nil {
		events |= unix.EPOLLOUT
	}

	reactable := &Reactable{fd: fd, onReadReady: onReadReady, onWriteReady: onWriteReady}

	// Table entry first, so an event delivered on the very next pass finds
	// the record.
	r.mu.Lock()
	r.table[fd] = reactable
	r.mu.Unlock()

	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := epollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		panic(fmt.Sprintf("reactor: could not register fd %d: %v", fd, err))
	}
	return reactable
}

// Unregister removes a reactable from the watched set. If the reactable's
// callback is executing on the reactor goroutine (including when called
// from inside that callback), teardown is deferred until the callback
// returns; [Reactor.WaitForUnregisteredReactable] waits for it. Otherwise
// the reactable is dead when Unregister returns.
//
// The reactable must have been returned by this reactor's Register and not
// unregistered before.
func (r *Reactor) Unregister(reactable *Reactable) {
	if reactable == nil {
		panic("reactor: Unregister called with nil reactable")
	}

	// Events for this fd already handed back by the kernel in the current
	// batch must not be dispatched.
	r.mu.Lock()
	r.invalidated = append(r.invalidated, reactable.fd)
	if r.table[reactable.fd] == reactable {
		delete(r.table, reactable.fd)
	}
	r.mu.Unlock()

	var finished chan struct{}
	reactable.mu.Lock()
	if err := epollCtl(r.epfd, unix.EPOLL_CTL_DEL, reactable.fd, nil); err != nil {
		if err == unix.ENOENT {
			// The owner may have closed the fd before unregistering.
			r.logger.Info().Int("fd", reactable.fd).Log("reactable already absent from kernel set")
		} else {
			panic(fmt.Sprintf("reactor: could not unregister fd %d: %v", reactable.fd, err))
		}
	}
	if reactable.isExecuting {
		reactable.removed = true
		reactable.finished = make(chan struct{})
		finished = reactable.finished
	}
	reactable.mu.Unlock()

	if finished != nil {
		r.mu.Lock()
		r.unregisterDone = finished
		r.mu.Unlock()
	}
}

// ModifyRegistration changes which readiness directions an existing
// registration watches. It does not replace callbacks; a direction whose
// callback was nil at Register time will simply never fire one.
//
// Panics if the kernel rejects the modification.
func (r *Reactor) ModifyRegistration(reactable *Reactable, reactOn ReactOn) {
	if reactable == nil {
		panic("reactor: ModifyRegistration called with nil reactable")
	}

	var events uint32
	if reactOn == ReactOnReadOnly || reactOn == ReactOnReadWrite {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if reactOn == ReactOnWriteOnly || reactOn == ReactOnReadWrite {
		events |= unix.EPOLLOUT
	}

	ev := unix.EpollEvent{Events: events, Fd: int32(reactable.fd)}
	if err := epollCtl(r.epfd, unix.EPOLL_CTL_MOD, reactable.fd, &ev); err != nil {
		panic(fmt.Sprintf("reactor: could not modify registration for fd %d: %v", reactable.fd, err))
	}
}
