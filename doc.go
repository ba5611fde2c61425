// Package reactor provides a single-threaded I/O readiness reactor for Go,
// built on Linux epoll and eventfd. It watches a set of file descriptors and
// dispatches user-supplied callbacks when those descriptors become ready for
// reading or writing.
//
// # Architecture
//
// A [Reactor] owns an epoll instance and a control eventfd. One dedicated
// goroutine calls [Reactor.Run], which blocks in epoll_wait and invokes
// callbacks serially, in kernel delivery order within each batch. All other
// operations ([Reactor.Register], [Reactor.Unregister],
// [Reactor.ModifyRegistration], [Reactor.Stop], [Reactor.WaitForIdle],
// [Reactor.WaitForUnregisteredReactable]) are safe to call from any
// goroutine, including from inside a callback running on the reactor
// goroutine.
//
// Commands to the reactor goroutine travel over the control eventfd as a
// bitmask accumulated in its counter, so simultaneous commands coalesce into
// a single wakeup.
//
// [Event] is a counting notification primitive over a semaphore-mode
// eventfd. Each [Event.Notify] corresponds to exactly one readiness event,
// so notifications arriving between dispatch passes are never lost. An Event
// may be registered with a reactor via its [Event.ID].
//
// # Unregistration
//
// [Reactor.Unregister] is safe with respect to in-flight callbacks. If the
// reactable's callback is executing when Unregister is called (including the
// common case of a callback unregistering itself), teardown is deferred
// until the callback returns; [Reactor.WaitForUnregisteredReactable] waits
// for that completion. Once Unregister has returned (immediate case) or
// WaitForUnregisteredReactable has returned true (deferred case), the
// reactable's callbacks will not fire again.
//
// # Idle detection
//
// [Reactor.WaitForIdle] declares quiescence when one full epoll_wait call
// returns zero events under a short (30 ms) timeout. This is a heuristic: a
// continuously busy reactor never quiesces, and a reactor with periodic
// activity may appear quiescent between events. There is no stronger
// definition of idleness.
//
// # Platform support
//
// Linux only. The semaphore-decrement eventfd mode the wakeup accounting
// relies on has no portable equivalent.
//
// # Errors
//
// Environment-dependent construction failures are returned as errors from
// [New] and [NewEvent]. Conditions that indicate programmer error or kernel
// resource exhaustion (a second concurrent Run, closing a reactor with live
// reactables, epoll registration failures) panic. [Reactor.WaitForIdle],
// [Reactor.WaitForUnregisteredReactable], and [Event.Read] report outcomes
// as booleans.
//
// Logging is disabled by default; supply a logger with [WithLogger].
package reactor
