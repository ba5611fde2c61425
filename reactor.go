//go:build linux

package reactor

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
)

// Control word bits. Commands issued close together coalesce by
// accumulating in the control eventfd counter, costing a single wakeup.
const (
	stopReactor uint64 = 1 << iota
	waitForIdle
)

// idleTimeoutMs is the epoll timeout while waiting for quiescence.
const idleTimeoutMs = 30

// Reactor is a single-threaded I/O readiness demultiplexer. Construct with
// [New], drive with [Reactor.Run] on a dedicated goroutine, and feed with
// [Reactor.Register].
type Reactor struct {
	logger *logiface.Logger[logiface.Event]

	epfd      int
	controlFd int
	batchSize int

	running atomic.Bool

	// mu guards the four fields below. Lock order where both are needed:
	// mu, then a Reactable's mu; never the reverse. Neither lock is ever
	// held across a blocking kernel call or a callback.
	mu             sync.Mutex
	table          map[int]*Reactable
	invalidated    []int // fds unregistered during the current dispatch pass
	idleDone       chan struct{}
	unregisterDone chan struct{}
}

// New creates a Reactor. The returned reactor is not running; call
// [Reactor.Run] on a dedicated goroutine.
func New(opts ...ReactorOption) (*Reactor, error) {
	cfg, err := resolveReactorOptions(opts)
	if err != nil {
		return nil, err
	}

	epfd, err := epollCreate()
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll create: %w", err)
	}

	controlFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = closeFd(epfd)
		return nil, fmt.Errorf("reactor: control eventfd create: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(controlFd)}
	if err := epollCtl(epfd, unix.EPOLL_CTL_ADD, controlFd, &ev); err != nil {
		_ = closeFd(controlFd)
		_ = closeFd(epfd)
		return nil, fmt.Errorf("reactor: control eventfd register: %w", err)
	}

	return &Reactor{
		logger:    cfg.logger,
		epfd:      epfd,
		controlFd: controlFd,
		batchSize: cfg.batchSize,
		table:     make(map[int]*Reactable),
	}, nil
}

// NewEvent creates a wakeable owned by the caller, suitable for registering
// with this (or any) reactor.
func (r *Reactor) NewEvent() (*Event, error) {
	return NewEvent()
}

// Close releases the reactor's kernel resources. Run must have returned and
// every reactable must have been unregistered; violating either panics.
func (r *Reactor) Close() {
	if r.running.Load() {
		panic("reactor: Close called while Run is active")
	}
	r.mu.Lock()
	remaining := len(r.table)
	r.mu.Unlock()
	if remaining != 0 {
		panic(fmt.Sprintf("reactor: Close called with %d reactables still registered", remaining))
	}

	if err := epollCtl(r.epfd, unix.EPOLL_CTL_DEL, r.controlFd, nil); err != nil {
		panic(fmt.Sprintf("reactor: could not deregister control eventfd: %v", err))
	}
	if err := closeFd(r.controlFd); err != nil {
		panic(fmt.Sprintf("reactor: control eventfd close failed: %v", err))
	}
	if err := closeFd(r.epfd); err != nil {
		panic(fmt.Sprintf("reactor: epoll close failed: %v", err))
	}
}

// Run executes the dispatch loop on the calling goroutine, blocking until
// [Reactor.Stop] is observed. Callbacks for all reactables execute here,
// serially, in kernel delivery order within each batch; there is no
// ordering guarantee across batches.
//
// A second concurrent Run panics.
func (r *Reactor) Run() {
	if r.running.Swap(true) {
		panic("reactor: Run called while already running")
	}

	timeoutMs := -1
	waitingForIdle := false
	events := make([]unix.EpollEvent, r.batchSize)
	for {
		// Invalidations are meaningful only to the batch they were issued
		// against.
		r.mu.Lock()
		r.invalidated = r.invalidated[:0]
		r.mu.Unlock()

		n, err := epollWait(r.epfd, events, timeoutMs)
		if err != nil {
			panic(fmt.Sprintf("reactor: epoll wait failed: fd=%d, err=%v", r.epfd, err))
		}

		if waitingForIdle && n == 0 {
			timeoutMs = -1
			waitingForIdle = false
			r.mu.Lock()
			if r.idleDone != nil {
				close(r.idleDone)
				r.idleDone = nil
			}
			r.mu.Unlock()
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			if int(ev.Fd) == r.controlFd {
				if !r.handleControl(&timeoutMs, &waitingForIdle) {
					return
				}
				continue
			}
			r.dispatch(&ev)
		}
	}
}

// handleControl consumes one control word. Returns false when the reactor
// must stop.
func (r *Reactor) handleControl(timeoutMs *int, waitingForIdle *bool) bool {
	value, err := eventfdRead(r.controlFd)
	if err != nil {
		r.logger.Err().Err(err).Log("control eventfd read failed")
		return true
	}
	switch {
	case value&stopReactor != 0:
		r.running.Store(false)
		return false
	case value&waitForIdle != 0:
		*timeoutMs = idleTimeoutMs
		*waitingForIdle = true
	default:
		r.logger.Err().Uint64("value", value).Log("unknown control word")
	}
	return true
}

// dispatch invokes the callbacks for one readiness event.
func (r *Reactor) dispatch(ev *unix.EpollEvent) {
	fd := int(ev.Fd)

	r.mu.Lock()
	r.unregisterDone = nil
	reactable := r.table[fd]
	// Skip events whose reactable was unregistered after the kernel handed
	// back this batch.
	if reactable == nil || slices.Contains(r.invalidated, fd) {
		r.mu.Unlock()
		return
	}
	// Take the reactable lock before releasing the table lock, so an
	// Unregister cannot slip in between the lookup and the isExecuting
	// transition.
	reactable.mu.Lock()
	r.mu.Unlock()
	reactable.isExecuting = true
	reactable.mu.Unlock()

	// No locks held: callbacks may call Unregister, including on this same
	// reactable.
	if ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0 && reactable.onReadReady != nil {
		reactable.onReadReady()
	}
	if ev.Events&unix.EPOLLOUT != 0 && reactable.onWriteReady != nil {
		reactable.onWriteReady()
	}

	reactable.mu.Lock()
	reactable.isExecuting = false
	if reactable.removed {
		close(reactable.finished)
	}
	reactable.mu.Unlock()
}

// Stop requests that [Reactor.Run] return. It is safe from any goroutine,
// returns without waiting for the reactor to wind down, and may be called
// before Run has begun (the command is observed on the first pass).
// Repeated calls accumulate on the control counter and are absorbed.
func (r *Reactor) Stop() {
	if !r.running.Load() {
		r.logger.Warning().Log("reactor not running, will stop once it is started")
	}
	if err := eventfdWrite(r.controlFd, stopReactor); err != nil {
		panic(fmt.Sprintf("reactor: control eventfd write failed: %v", err))
	}
}

// WaitForIdle blocks until the reactor observes quiescence, or until
// timeout elapses, reporting which happened. Quiescence means one full
// readiness poll returned no events within a short (30 ms) window; a
// continuously busy reactor therefore never reports idle, and a reactor
// with periodic activity may report idle between events.
func (r *Reactor) WaitForIdle(timeout time.Duration) bool {
	done := make(chan struct{})
	r.mu.Lock()
	r.idleDone = done
	r.mu.Unlock()

	if err := eventfdWrite(r.controlFd, waitForIdle); err != nil {
		panic(fmt.Sprintf("reactor: control eventfd write failed: %v", err))
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// WaitForUnregisteredReactable blocks until the most recent deferred
// unregistration completes, or until timeout elapses, reporting which
// happened. When no unregistration is pending it returns true immediately.
// After it returns true the unregistered reactable's callbacks will not
// fire again and its fd may be closed.
func (r *Reactor) WaitForUnregisteredReactable(timeout time.Duration) bool {
	r.mu.Lock()
	done := r.unregisterDone
	r.mu.Unlock()
	if done == nil {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		r.logger.Err().Log("timed out waiting for unregistered reactable")
		return false
	}
}
