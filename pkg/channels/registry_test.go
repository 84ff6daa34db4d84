package channels

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setlive/setlive-go/internal/fakefeed"
	"github.com/setlive/setlive-go/pkg/feed"
	"github.com/setlive/setlive-go/pkg/logger"
)

func newTestRegistry(t *testing.T) (*Registry, *fakefeed.Feed) {
	t.Helper()
	f := fakefeed.New()
	r := NewRegistry(f, logger.Nop()).SetDebounceWindow(5 * time.Millisecond)
	return r, f
}

func TestSubscribeBeforeInit(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Subscribe("requests", "", func([]feed.Event) {})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestInitIsIdempotent(t *testing.T) {
	r, f := newTestRegistry(t)

	require.NoError(t, r.Init(context.Background()))
	require.NoError(t, r.Init(context.Background()))

	assert.Equal(t, StateConnected, r.State())
	assert.Zero(t, f.Closed)
}

func TestConcurrentInitDialsOnce(t *testing.T) {
	r, f := newTestRegistry(t)
	f.ConnectDelay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Init(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.ConnectCount(), "overlapping Init calls must share one dial")
	assert.Equal(t, StateConnected, r.State())
}

func TestInitFailure(t *testing.T) {
	r, f := newTestRegistry(t)
	f.ConnectErr = errors.New("dial refused")

	err := r.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateError, r.State())

	// The next attempt succeeds.
	require.NoError(t, r.Init(context.Background()))
	assert.Equal(t, StateConnected, r.State())
}

func TestEvictsOldestAtCeiling(t *testing.T) {
	r, f := newTestRegistry(t)
	r.SetMaxSubscriptions(5)
	require.NoError(t, r.Init(context.Background()))

	ids := make([]string, 0, 6)
	for i := 0; i < 5; i++ {
		id, err := r.Subscribe(fmt.Sprintf("table%d", i), "", func([]feed.Event) {})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.Equal(t, 5, r.Count())

	// The 6th subscription closes exactly the oldest one.
	_, err := r.Subscribe("table5", "", func([]feed.Event) {})
	require.NoError(t, err)

	assert.Equal(t, 5, r.Count())
	assert.Equal(t, []string{ids[0]}, f.Unsubscribed)
}

func TestUnsubscribeIdempotent(t *testing.T) {
	r, f := newTestRegistry(t)
	require.NoError(t, r.Init(context.Background()))

	id1, err := r.Subscribe("requests", "", func([]feed.Event) {})
	require.NoError(t, err)
	id2, err := r.Subscribe("votes", "", func([]feed.Event) {})
	require.NoError(t, err)

	require.NoError(t, r.Unsubscribe(id1))
	require.NoError(t, r.Unsubscribe(id1), "double unsubscribe must not error")
	assert.Equal(t, 1, r.Count(), "other subscriptions are unaffected")

	require.NoError(t, r.Unsubscribe(id2))
	assert.Equal(t, 0, r.Count())
	assert.Zero(t, f.ActiveCount())
}

func TestEventsAreDebounced(t *testing.T) {
	r, f := newTestRegistry(t)
	require.NoError(t, r.Init(context.Background()))

	var calls atomic.Int32
	_, err := r.Subscribe("requests", "", func(events []feed.Event) {
		calls.Add(1)
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		f.Emit("requests", feed.Event{Action: feed.ActionUpdate})
	}

	assert.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, 5*time.Millisecond, "a burst must collapse to one callback")

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConnectionListeners(t *testing.T) {
	r, f := newTestRegistry(t)

	var mu sync.Mutex
	var seen []State
	r.AddConnectionListener(func(s State) {
		panic("listener misbehaving")
	})
	r.AddConnectionListener(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	require.NoError(t, r.Init(context.Background()))
	f.FailConnection(errors.New("socket dropped"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateConnecting, StateConnected, StateError}, seen,
		"every transition reaches the second listener despite the first panicking")
}

func TestReconnectReplacesConnection(t *testing.T) {
	r, f := newTestRegistry(t)
	require.NoError(t, r.Init(context.Background()))

	_, err := r.Subscribe("requests", "", func([]feed.Event) {})
	require.NoError(t, err)

	require.NoError(t, r.Reconnect(context.Background()))

	assert.Equal(t, StateConnected, r.State())
	assert.Zero(t, r.Count(), "subscriptions are torn down, controllers re-open them")
	assert.Equal(t, 1, f.Closed)
}

func TestConcurrentReconnectDoesNotLeak(t *testing.T) {
	r, f := newTestRegistry(t)
	require.NoError(t, r.Init(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Reconnect(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, StateConnected, r.State())
	assert.LessOrEqual(t, f.Closed, 8)
	assert.Zero(t, f.ActiveCount())
}

func TestFeedErrorMovesStateToError(t *testing.T) {
	r, f := newTestRegistry(t)
	require.NoError(t, r.Init(context.Background()))

	f.FailConnection(errors.New("gone"))
	assert.Equal(t, StateError, r.State())

	require.NoError(t, r.Reconnect(context.Background()))
	assert.Equal(t, StateConnected, r.State())
}

func TestTeardown(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Init(context.Background()))
	_, err := r.Subscribe("requests", "", func([]feed.Event) {})
	require.NoError(t, err)

	require.NoError(t, r.Teardown(context.Background()))
	assert.Equal(t, StateDisconnected, r.State())
	assert.Zero(t, r.Count())
}
