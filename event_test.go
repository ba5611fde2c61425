//go:build linux

package reactor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_NotifyThenRead(t *testing.T) {
	ev, err := NewEvent()
	require.NoError(t, err)
	defer ev.Close()

	require.False(t, ev.Read(), "fresh event should have a zero counter")

	ev.Notify()
	require.True(t, ev.Read())
	require.False(t, ev.Read(), "counter should be back to zero")
}

// Each Notify must be consumed by exactly one successful Read.
func TestEvent_SemaphoreAccounting(t *testing.T) {
	ev, err := NewEvent()
	require.NoError(t, err)
	defer ev.Close()

	const n = 3
	for i := 0; i < n; i++ {
		ev.Notify()
	}
	for i := 0; i < n; i++ {
		require.True(t, ev.Read(), "read %d", i)
	}
	require.False(t, ev.Read())
}

func TestEvent_ClearDrainsCounter(t *testing.T) {
	ev, err := NewEvent()
	require.NoError(t, err)
	defer ev.Close()

	ev.Notify()
	ev.Notify()
	ev.Clear()
	require.False(t, ev.Read())

	// A notify after Clear is observable again.
	ev.Notify()
	require.True(t, ev.Read())
}

func TestEvent_ID(t *testing.T) {
	a, err := NewEvent()
	require.NoError(t, err)
	defer a.Close()
	b, err := NewEvent()
	require.NoError(t, err)
	defer b.Close()

	assert.GreaterOrEqual(t, a.ID(), 0)
	assert.GreaterOrEqual(t, b.ID(), 0)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestEvent_CloseTwicePanics(t *testing.T) {
	ev, err := NewEvent()
	require.NoError(t, err)
	ev.Close()
	require.Panics(t, func() { ev.Close() })
}

// An Event registered with a reactor delivers one callback per Notify.
func TestEvent_WakesReactor(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	join := startReactor(t, r)

	ev, err := r.NewEvent()
	require.NoError(t, err)

	var fired atomic.Int64
	var readFailed atomic.Bool
	reactable := r.Register(ev.ID(), func() {
		if !ev.Read() {
			readFailed.Store(true)
		}
		fired.Add(1)
	}, nil)

	const n = 3
	for i := 0; i < n; i++ {
		ev.Notify()
	}

	require.Eventually(t, func() bool { return fired.Load() == n },
		2*time.Second, time.Millisecond)
	require.False(t, readFailed.Load(), "every callback should consume one notification")

	// Counter is fully drained: no further callbacks.
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, n, fired.Load())

	r.Unregister(reactable)
	require.True(t, r.WaitForUnregisteredReactable(time.Second))
	ev.Close()

	join()
	r.Close()
}
