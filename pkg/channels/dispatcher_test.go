package channels

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setlive/setlive-go/pkg/feed"
)

func TestDispatcherCoalescesBurst(t *testing.T) {
	var mu sync.Mutex
	var calls [][]feed.Event
	d := NewDispatcher(20*time.Millisecond, func(events []feed.Event) {
		mu.Lock()
		calls = append(calls, events)
		mu.Unlock()
	})
	defer d.Stop()

	// An unlock-then-lock pair inside one transaction.
	d.Add(feed.Event{Action: feed.ActionUpdate})
	d.Add(feed.Event{Action: feed.ActionUpdate})
	d.Add(feed.Event{Action: feed.ActionInsert})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 1, "a burst collapses into a single callback")
	assert.Len(t, calls[0], 3)
}

func TestDispatcherSeparateBursts(t *testing.T) {
	var count atomic.Int32
	d := NewDispatcher(10*time.Millisecond, func([]feed.Event) {
		count.Add(1)
	})
	defer d.Stop()

	d.Add(feed.Event{})
	time.Sleep(40 * time.Millisecond)
	d.Add(feed.Event{})
	time.Sleep(40 * time.Millisecond)

	assert.Equal(t, int32(2), count.Load())
}

func TestDispatcherStopDiscardsPending(t *testing.T) {
	var count atomic.Int32
	d := NewDispatcher(20*time.Millisecond, func([]feed.Event) {
		count.Add(1)
	})

	d.Add(feed.Event{})
	d.Stop()
	time.Sleep(60 * time.Millisecond)

	assert.Zero(t, count.Load(), "a cleared timer must not fire into stopped state")

	// Adds after Stop are dropped.
	d.Add(feed.Event{})
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, count.Load())
}

func TestDispatcherFlush(t *testing.T) {
	var count atomic.Int32
	d := NewDispatcher(time.Hour, func([]feed.Event) {
		count.Add(1)
	})
	defer d.Stop()

	d.Add(feed.Event{})
	d.Flush()

	assert.Equal(t, int32(1), count.Load())

	// Flush with nothing pending is a no-op.
	d.Flush()
	assert.Equal(t, int32(1), count.Load())
}
