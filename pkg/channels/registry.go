// Package channels owns the set of active change-feed subscriptions: it
// enforces the concurrency ceiling, debounces raw events per subscription,
// tracks the coarse connection state and exposes connect/reconnect/teardown.
package channels

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/setlive/setlive-go/pkg/feed"
	"github.com/setlive/setlive-go/pkg/logger"
)

// DefaultMaxSubscriptions is the subscription concurrency ceiling. Opening
// one more evicts the oldest subscription; callers never wait for a slot.
const DefaultMaxSubscriptions = 5

// ErrNotReady is returned by Subscribe before Init has succeeded.
var ErrNotReady = errors.New("channel registry is not initialized")

// OnChange receives one debounced burst of events.
type OnChange func(events []feed.Event)

// ConnectionListener observes every connection-state transition.
type ConnectionListener func(State)

type subscription struct {
	id         string
	table      string
	filter     string
	dispatcher *Dispatcher
	seq        uint64
}

// Registry wraps a Feed. Construct with NewRegistry and share one instance
// across all sync controllers; internal maps are confined to its methods.
type Registry struct {
	feed   feed.Feed
	logger logger.Logger

	maxSubs int
	window  time.Duration

	mu           sync.Mutex
	ready        bool
	initializing bool
	reconnecting bool
	seq          uint64
	subs         map[string]*subscription
	state        State
	listeners    []ConnectionListener
}

// NewRegistry returns a registry over f. It registers itself as f's error
// handler to keep the state value honest when the connection drops.
func NewRegistry(f feed.Feed, log logger.Logger) *Registry {
	r := &Registry{
		feed:    f,
		logger:  log,
		maxSubs: DefaultMaxSubscriptions,
		window:  DefaultDebounceWindow,
		subs:    make(map[string]*subscription),
		state:   StateDisconnected,
	}
	f.OnError(r.handleFeedError)
	return r
}

// SetMaxSubscriptions overrides the concurrency ceiling.
func (r *Registry) SetMaxSubscriptions(n int) *Registry {
	if n > 0 {
		r.maxSubs = n
	}
	return r
}

// SetDebounceWindow overrides the per-subscription debounce window.
func (r *Registry) SetDebounceWindow(w time.Duration) *Registry {
	if w > 0 {
		r.window = w
	}
	return r
}

// Init connects the feed and marks the registry ready. It is idempotent:
// a call while ready, or while another Init is still dialing, is a no-op.
// Without the in-flight guard two concurrent calls would both dial and the
// second connection would orphan the first.
func (r *Registry) Init(ctx context.Context) error {
	r.mu.Lock()
	if r.ready || r.initializing {
		r.mu.Unlock()
		return nil
	}
	r.initializing = true
	notify := r.transitionLocked(StateConnecting)
	r.mu.Unlock()
	notify()

	err := r.feed.Connect(ctx)

	r.mu.Lock()
	r.initializing = false
	if err != nil {
		notify = r.transitionLocked(StateError)
		r.mu.Unlock()
		notify()
		return err
	}
	r.ready = true
	notify = r.transitionLocked(StateConnected)
	r.mu.Unlock()
	notify()

	r.logger.Info("channel registry connected")
	return nil
}

// Subscribe opens a debounced subscription on table. At the ceiling the
// oldest subscription is evicted first; this is bounded-resource policy, not
// an error.
func (r *Registry) Subscribe(table, filter string, onChange OnChange) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return "", ErrNotReady
	}

	for len(r.subs) >= r.maxSubs {
		oldest := r.oldestLocked()
		if oldest == "" {
			break
		}
		r.logger.Warn("subscription ceiling reached, evicting oldest", "evicted", oldest, "table", table)
		r.dropLocked(oldest)
	}

	id, events, err := r.feed.Subscribe(table, filter)
	if err != nil {
		r.logger.Error("failed to open subscription", "table", table, "error", err)
		return "", err
	}

	d := NewDispatcher(r.window, onChange)
	r.seq++
	r.subs[id] = &subscription{
		id:         id,
		table:      table,
		filter:     filter,
		dispatcher: d,
		seq:        r.seq,
	}

	go func() {
		for ev := range events {
			d.Add(ev)
		}
	}()

	r.logger.Debug("subscription opened", "id", id, "table", table)
	return id, nil
}

// Unsubscribe tears down the subscription. Unknown ids, including a second
// unsubscribe of the same handle, warn and return nil.
func (r *Registry) Unsubscribe(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[id]; !ok {
		r.logger.Warn("unsubscribe of unknown subscription", "id", id)
		return nil
	}
	r.dropLocked(id)
	return nil
}

func (r *Registry) dropLocked(id string) {
	sub := r.subs[id]
	delete(r.subs, id)
	sub.dispatcher.Stop()
	if err := r.feed.Unsubscribe(sub.id); err != nil {
		r.logger.Warn("feed unsubscribe failed", "id", id, "error", err)
	}
}

func (r *Registry) oldestLocked() string {
	var oldest string
	var min uint64
	for id, sub := range r.subs {
		if oldest == "" || sub.seq < min {
			oldest = id
			min = sub.seq
		}
	}
	return oldest
}

// Reconnect tears down every active subscription, closes the feed and
// re-initializes it. Overlapping calls collapse: a call arriving while a
// reconnect is in progress returns immediately without leaking channels.
// Callers re-open their subscriptions afterwards.
func (r *Registry) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return nil
	}
	r.reconnecting = true
	for id := range r.subs {
		r.dropLocked(id)
	}
	r.ready = false
	notify := r.transitionLocked(StateConnecting)
	r.mu.Unlock()
	notify()

	if err := r.feed.Close(ctx); err != nil {
		r.logger.Warn("closing feed before reconnect", "error", err)
	}
	err := r.feed.Connect(ctx)

	r.mu.Lock()
	r.reconnecting = false
	if err != nil {
		notify = r.transitionLocked(StateError)
		r.mu.Unlock()
		notify()
		return err
	}
	r.ready = true
	notify = r.transitionLocked(StateConnected)
	r.mu.Unlock()
	notify()

	r.logger.Info("channel registry reconnected")
	return nil
}

// Teardown drops all subscriptions and disconnects.
func (r *Registry) Teardown(ctx context.Context) error {
	r.mu.Lock()
	for id := range r.subs {
		r.dropLocked(id)
	}
	r.ready = false
	notify := r.transitionLocked(StateDisconnected)
	r.mu.Unlock()
	notify()

	return r.feed.Close(ctx)
}

// Count returns the number of active subscriptions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// State returns the current connection state.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// AddConnectionListener registers fn for every state transition. A listener
// panicking must not prevent the others from being notified.
func (r *Registry) AddConnectionListener(fn ConnectionListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// transitionLocked updates the state and returns a closure that notifies
// listeners once the registry lock is released.
func (r *Registry) transitionLocked(to State) func() {
	next, err := r.state.TransitionTo(to)
	if err != nil {
		if r.state == to {
			return func() {}
		}
		r.logger.Warn("forcing connection state", "from", r.state.String(), "to", to.String())
		next = to
	}
	r.state = next
	listeners := make([]ConnectionListener, len(r.listeners))
	copy(listeners, r.listeners)

	return func() {
		for _, fn := range listeners {
			r.notifyOne(fn, next)
		}
	}
}

func (r *Registry) notifyOne(fn ConnectionListener, s State) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("connection listener panicked", "panic", rec)
		}
	}()
	fn(s)
}

func (r *Registry) handleFeedError(err error) {
	r.logger.Error("change feed connection error", "error", err)
	r.mu.Lock()
	notify := r.transitionLocked(StateError)
	r.mu.Unlock()
	notify()
}
