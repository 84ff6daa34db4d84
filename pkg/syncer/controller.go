// Package syncer orchestrates one synchronized collection each: cache check,
// full fetch, fold, cache write, change subscriptions, merge-on-event, and
// manual refresh/reconnect. Controllers never assume event order; every
// change event triggers a full cache-bypassing refetch, so the published
// data is a function of the latest completed fetch.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/setlive/setlive-go/pkg/cache"
	"github.com/setlive/setlive-go/pkg/channels"
	"github.com/setlive/setlive-go/pkg/feed"
	"github.com/setlive/setlive-go/pkg/logger"
	"github.com/setlive/setlive-go/pkg/store"
)

const (
	// DefaultTTL is how long a cached collection snapshot stays fresh.
	DefaultTTL = 30 * time.Second
	// DefaultRetryBase is the backoff base: base × 2^attempt.
	DefaultRetryBase = 500 * time.Millisecond
	// DefaultMaxRetries caps consecutive automatic retries. Past the cap
	// recovery requires an explicit Refresh or Reconnect.
	DefaultMaxRetries = 3
)

// Deps are the shared process-wide collaborators, constructed once at
// startup and passed to every controller.
type Deps struct {
	Store    store.Store
	Cache    *cache.Cache
	Registry *channels.Registry
	Logger   logger.Logger
}

// FetchFunc performs the underlying read and fold for a collection.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Watch names one table subscription a controller maintains.
type Watch struct {
	Table  string
	Filter string
}

// Controller keeps one collection in sync. Create with NewController; the
// zero value is not usable.
type Controller[T any] struct {
	name     string
	cacheKey string
	fetchFn  FetchFunc[T]
	watches  []Watch

	ttl        time.Duration
	retryBase  time.Duration
	maxRetries int

	cache    *cache.Cache
	registry *channels.Registry
	logger   logger.Logger

	mu         sync.Mutex
	closed     bool
	inFlight   bool
	attempts   int
	retryTimer *time.Timer
	subIDs     []string
	data       T
	hasData    bool
	lastErr    error
	updates    chan struct{}
}

// NewController builds a controller for one collection. fetchFn must return
// the folded, authoritative collection.
func NewController[T any](name, cacheKey string, fetchFn FetchFunc[T], deps Deps) *Controller[T] {
	return &Controller[T]{
		name:       name,
		cacheKey:   cacheKey,
		fetchFn:    fetchFn,
		ttl:        DefaultTTL,
		retryBase:  DefaultRetryBase,
		maxRetries: DefaultMaxRetries,
		cache:      deps.Cache,
		registry:   deps.Registry,
		logger:     deps.Logger,
		updates:    make(chan struct{}, 1),
	}
}

// Watch adds a table subscription opened by SubscribeToChanges.
func (c *Controller[T]) Watch(table, filter string) *Controller[T] {
	c.watches = append(c.watches, Watch{Table: table, Filter: filter})
	return c
}

// SetTTL overrides the cache TTL.
func (c *Controller[T]) SetTTL(ttl time.Duration) *Controller[T] {
	if ttl > 0 {
		c.ttl = ttl
	}
	return c
}

// SetRetry overrides the backoff base and retry cap.
func (c *Controller[T]) SetRetry(base time.Duration, maxRetries int) *Controller[T] {
	if base > 0 {
		c.retryBase = base
	}
	if maxRetries >= 0 {
		c.maxRetries = maxRetries
	}
	return c
}

// Fetch loads the collection and publishes it. Concurrent calls are
// single-flight: while a fetch is in flight, further calls return
// immediately. Without bypassCache a fresh cache entry short-circuits the
// read. On failure the last cached value keeps being served, the error is
// recorded and a backoff retry is scheduled up to the retry cap.
func (c *Controller[T]) Fetch(ctx context.Context, bypassCache bool) error {
	c.mu.Lock()
	if c.closed || c.inFlight {
		c.mu.Unlock()
		return nil
	}

	if !bypassCache {
		if v, ok := c.cache.Get(c.cacheKey); ok {
			if data, ok := v.(T); ok {
				c.data = data
				c.hasData = true
				c.lastErr = nil
				c.publishLocked()
				c.mu.Unlock()
				return nil
			}
		}
	}

	c.inFlight = true
	c.mu.Unlock()

	data, err := c.fetchFn(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if c.closed {
		// Owner torn down while the read was in flight; discard silently.
		return nil
	}

	if err != nil {
		c.lastErr = err
		c.logger.Error("fetch failed", "collection", c.name, "error", err)
		if store.IsTransient(err) {
			c.scheduleRetryLocked()
		}
		// Stale-but-present beats empty: cached data stays published.
		c.publishLocked()
		return err
	}

	c.attempts = 0
	c.lastErr = nil
	c.data = data
	c.hasData = true
	c.cache.Set(c.cacheKey, data, c.ttl)
	c.publishLocked()
	return nil
}

func (c *Controller[T]) scheduleRetryLocked() {
	c.attempts++
	if c.attempts >= c.maxRetries {
		c.logger.Warn("retry ceiling reached, waiting for manual refresh", "collection", c.name, "attempts", c.attempts)
		return
	}
	delay := c.retryBase << (c.attempts - 1)
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		_ = c.Fetch(context.Background(), true)
	})
}

// publishLocked signals Updates. The channel holds at most one pending
// signal; consumers read the latest snapshot when they get around to it.
func (c *Controller[T]) publishLocked() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// Snapshot returns the current data, the last recorded error and whether a
// first load is still outstanding.
func (c *Controller[T]) Snapshot() (data T, err error, loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data, c.lastErr, !c.hasData
}

// Updates signals that a new snapshot is available. The channel is closed
// when the controller is.
func (c *Controller[T]) Updates() <-chan struct{} {
	return c.updates
}

// Refresh forces a cache-bypassing fetch.
func (c *Controller[T]) Refresh(ctx context.Context) error {
	return c.Fetch(ctx, true)
}

// SubscribeToChanges opens one subscription per watched table. Every event
// kind triggers a cache-bypassing fetch: the view model needs joined data a
// single-row event cannot reconstruct, so correctness wins over incremental
// patching. Setup failures are logged and left for the next reconnect.
func (c *Controller[T]) SubscribeToChanges() {
	for _, w := range c.watches {
		id, err := c.registry.Subscribe(w.Table, w.Filter, func([]feed.Event) {
			_ = c.Fetch(context.Background(), true)
		})
		if err != nil {
			c.logger.Error("subscription setup failed", "collection", c.name, "table", w.Table, "error", err)
			continue
		}
		c.mu.Lock()
		c.subIDs = append(c.subIDs, id)
		c.mu.Unlock()
	}
}

// Reconnect tears down the controller's subscriptions, re-establishes them
// and forces a cache-bypassing fetch. Manual recovery after a reported
// channel error.
func (c *Controller[T]) Reconnect(ctx context.Context) error {
	c.unsubscribeAll()
	c.SubscribeToChanges()
	return c.Fetch(ctx, true)
}

func (c *Controller[T]) unsubscribeAll() {
	c.mu.Lock()
	ids := c.subIDs
	c.subIDs = nil
	c.mu.Unlock()
	for _, id := range ids {
		_ = c.registry.Unsubscribe(id)
	}
}

// Close flags the controller inactive so in-flight fetch results are
// discarded on arrival, clears timers and tears down its subscriptions.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	ids := c.subIDs
	c.subIDs = nil
	close(c.updates)
	c.mu.Unlock()

	for _, id := range ids {
		_ = c.registry.Unsubscribe(id)
	}
}
