package setlive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/setlive/setlive-go/pkg/cache"
	"github.com/setlive/setlive-go/pkg/channels"
	"github.com/setlive/setlive-go/pkg/config"
	"github.com/setlive/setlive-go/pkg/feed"
	"github.com/setlive/setlive-go/pkg/logger"
	"github.com/setlive/setlive-go/pkg/optimistic"
	"github.com/setlive/setlive-go/pkg/store"
	"github.com/setlive/setlive-go/pkg/store/httpstore"
	"github.com/setlive/setlive-go/pkg/syncer"
)

// Option customizes a Board before it is opened.
type Option func(*Board)

// WithLogger replaces the default logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Board) { b.logger = l }
}

// WithStore replaces the default HTTP store client.
func WithStore(s store.Store) Option {
	return func(b *Board) { b.store = s }
}

// WithFeed replaces the default websocket change feed.
func WithFeed(f feed.Feed) Option {
	return func(b *Board) { b.feed = f }
}

// Board is the explicitly constructed context object shared by all sync
// controllers. One instance per process; no ambient globals.
type Board struct {
	cfg    *config.Config
	logger logger.Logger

	store      store.Store
	feed       feed.Feed
	registry   *channels.Registry
	cache      *cache.Cache
	optimistic *optimistic.Registry

	requests *syncer.RequestsController
	setlists *syncer.SetListsController

	mu       sync.Mutex
	degraded bool
	closed   bool
}

// Open assembles the board and runs the bounded startup sequence: token
// check, feed connect, initial fetch, change subscriptions. The sequence is
// capped by cfg.InitTimeout; past the cap the board proceeds in a degraded
// state (no live subscriptions, cache and fetch only) instead of hanging.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Board, error) {
	if cfg == nil {
		cfg = config.Load()
	}

	b := &Board{
		cfg:    cfg,
		logger: logger.New(slog.NewJSONHandler(os.Stdout, nil)),
		cache:  cache.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.store == nil {
		if cfg.StoreBaseURL == "" {
			return nil, fmt.Errorf("%w: store base url", ErrNotConfigured)
		}
		b.store = httpstore.New(cfg.StoreBaseURL, cfg.AuthToken)
	}
	if b.feed == nil {
		if cfg.FeedBaseURL == "" {
			return nil, fmt.Errorf("%w: feed base url", ErrNotConfigured)
		}
		b.feed = feed.NewWebSocketFeed(cfg.FeedBaseURL, cfg.AuthToken).Logger(b.logger)
	}

	b.optimistic = optimistic.NewRegistry(cfg.OptimisticGrace)
	b.registry = channels.NewRegistry(b.feed, b.logger).
		SetMaxSubscriptions(cfg.MaxSubscriptions).
		SetDebounceWindow(cfg.DebounceWindow)

	initCtx, cancel := context.WithTimeout(ctx, cfg.InitTimeout)
	defer cancel()

	if !tokenGrantsSubscriptions(cfg.AuthToken, time.Now()) {
		b.logger.Warn("auth token absent or expired, starting degraded")
		b.degraded = true
	}
	if !b.degraded {
		if err := b.registry.Init(initCtx); err != nil {
			b.logger.Warn("change feed unavailable, starting degraded", "error", err)
			b.degraded = true
		}
	}

	deps := syncer.Deps{
		Store:    b.store,
		Cache:    b.cache,
		Registry: b.registry,
		Logger:   b.logger,
	}
	b.requests = syncer.NewRequestsController(deps, b.optimistic, cfg.OwnerID)
	b.requests.SetTTL(cfg.CacheTTL).SetRetry(cfg.RetryBase, cfg.MaxRetries)
	b.setlists = syncer.NewSetListsController(deps, cfg.OwnerID)
	b.setlists.SetTTL(cfg.CacheTTL).SetRetry(cfg.RetryBase, cfg.MaxRetries)

	// Initial loads are best-effort: failures are recorded on the
	// controllers, which retry with backoff on their own.
	if err := b.requests.Fetch(initCtx, false); err != nil {
		b.logger.Warn("initial requests fetch failed", "error", err)
	}
	if err := b.setlists.Fetch(initCtx, false); err != nil {
		b.logger.Warn("initial setlists fetch failed", "error", err)
	}

	if !b.degraded {
		b.requests.SubscribeToChanges()
		b.setlists.SubscribeToChanges()
	}

	return b, nil
}

// Requests exposes the request queue controller.
func (b *Board) Requests() *syncer.RequestsController {
	return b.requests
}

// SetLists exposes the set list controller.
func (b *Board) SetLists() *syncer.SetListsController {
	return b.setlists
}

// Registry exposes the channel registry, mainly for connection-state
// listeners.
func (b *Board) Registry() *channels.Registry {
	return b.registry
}

// Degraded reports whether the board is running without live subscriptions.
func (b *Board) Degraded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.degraded
}

// Reconnect tears down the feed and every subscription, reconnects, then
// re-subscribes both controllers and forces cache-bypassing fetches. On
// success the board leaves degraded mode.
func (b *Board) Reconnect(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBoardClosed
	}
	b.mu.Unlock()

	if err := b.registry.Reconnect(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	b.degraded = false
	b.mu.Unlock()

	if err := b.requests.Reconnect(ctx); err != nil {
		b.logger.Warn("requests reconnect fetch failed", "error", err)
	}
	if err := b.setlists.Reconnect(ctx); err != nil {
		b.logger.Warn("setlists reconnect fetch failed", "error", err)
	}
	return nil
}

// HandleVisibilityChange is called by the UI layer when the tab or app
// regains or loses visibility. Regaining visibility triggers a reconnect;
// backgrounding is left alone, the feed survives or errors on its own.
func (b *Board) HandleVisibilityChange(visible bool) {
	if !visible {
		return
	}
	go func() {
		if err := b.Reconnect(context.Background()); err != nil {
			b.logger.Error("reconnect after visibility change failed", "error", err)
		}
	}()
}

// HandleNetworkChange is called by the UI layer on connectivity changes.
func (b *Board) HandleNetworkChange(online bool) {
	if !online {
		b.logger.Info("network offline, serving cached data")
		return
	}
	go func() {
		if err := b.Reconnect(context.Background()); err != nil {
			b.logger.Error("reconnect after network change failed", "error", err)
		}
	}()
}

// Close tears the board down: controllers first so in-flight fetches are
// discarded, then the optimistic registry and the feed.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.requests.Close()
	b.setlists.Close()
	b.optimistic.Close()
	return b.registry.Teardown(ctx)
}
