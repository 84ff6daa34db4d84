// Package fakefeed is an in-memory change feed for tests.
package fakefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/setlive/setlive-go/pkg/feed"
)

// Feed implements feed.Feed without any network. Events are injected with
// Emit; connection failures with FailConnection.
type Feed struct {
	mu        sync.Mutex
	connected bool
	nextID    int
	subs      map[string]*sub
	onError   func(error)

	// ConnectErr, when set, fails the next Connect.
	ConnectErr error
	// ConnectDelay stalls every Connect, to let tests overlap calls.
	ConnectDelay time.Duration
	connects     int
	// SubscribeErr, when set, fails every Subscribe.
	SubscribeErr error

	// Closed counts Close calls; Unsubscribed records ids in order.
	Closed       int
	Unsubscribed []string
}

type sub struct {
	table  string
	filter string
	ch     chan feed.Event
}

func New() *Feed {
	return &Feed{subs: make(map[string]*sub)}
}

func (f *Feed) Connect(ctx context.Context) error {
	f.mu.Lock()
	delay := f.ConnectDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.ConnectErr != nil {
		err := f.ConnectErr
		f.ConnectErr = nil
		return err
	}
	f.connected = true
	return nil
}

// ConnectCount returns the number of Connect calls so far.
func (f *Feed) ConnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *Feed) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed++
	f.connected = false
	for id, s := range f.subs {
		close(s.ch)
		delete(f.subs, id)
	}
	return nil
}

func (f *Feed) Subscribe(table, filter string) (string, <-chan feed.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return "", nil, feed.ErrNotConnected
	}
	if f.SubscribeErr != nil {
		return "", nil, f.SubscribeErr
	}
	f.nextID++
	id := fmt.Sprintf("sub-%d", f.nextID)
	s := &sub{table: table, filter: filter, ch: make(chan feed.Event, 32)}
	f.subs[id] = s
	return id, s.ch, nil
}

func (f *Feed) Unsubscribe(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Unsubscribed = append(f.Unsubscribed, id)
	if s, ok := f.subs[id]; ok {
		close(s.ch)
		delete(f.subs, id)
	}
	return nil
}

func (f *Feed) OnError(fn func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onError = fn
}

// Emit delivers an event to every subscription on table.
func (f *Feed) Emit(table string, ev feed.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.subs {
		if s.table == table {
			ev.Channel = id
			ev.Table = table
			s.ch <- ev
		}
	}
}

// FailConnection simulates a mid-stream connection failure.
func (f *Feed) FailConnection(err error) {
	f.mu.Lock()
	fn := f.onError
	f.connected = false
	f.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// ClosedCount returns the number of Close calls so far.
func (f *Feed) ClosedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}

// ActiveTables returns the tables with live subscriptions.
func (f *Feed) ActiveTables() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	tables := make([]string, 0, len(f.subs))
	for _, s := range f.subs {
		tables = append(tables, s.table)
	}
	return tables
}

// ActiveCount returns the number of live subscriptions.
func (f *Feed) ActiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
