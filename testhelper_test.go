//go:build linux

package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// startReactor runs r.Run on a new goroutine and returns a join function
// that stops the reactor and waits for Run to return.
func startReactor(t *testing.T, r *Reactor) (join func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run()
	}()
	return func() {
		r.Stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("reactor did not stop")
		}
	}
}

// newPipe returns the read and write ends of a nonblocking pipe, closed at
// test cleanup.
func newPipe(t *testing.T) (rfd, wfd int) {
	t.Helper()
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	t.Cleanup(func() {
		_ = unix.Close(p[0])
		_ = unix.Close(p[1])
	})
	return p[0], p[1]
}

// newSocketpair returns a connected nonblocking unix socket pair, closed at
// test cleanup. Unlike a pipe end, each fd is both readable and writable.
func newSocketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}
