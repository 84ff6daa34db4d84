package channels

import (
	"sync"
	"time"

	"github.com/setlive/setlive-go/pkg/feed"
)

// DefaultDebounceWindow coalesces rapid successive writes, such as an
// unlock-then-lock pair landing in one transaction, into a single downstream
// callback.
const DefaultDebounceWindow = 50 * time.Millisecond

// Dispatcher debounces one subscription's raw events. Each event restarts
// the window timer; when the window elapses quietly the accumulated burst is
// delivered in one callback invocation.
type Dispatcher struct {
	mu      sync.Mutex
	window  time.Duration
	fn      func([]feed.Event)
	timer   *time.Timer
	pending []feed.Event
	gen     uint64
	stopped bool
}

// NewDispatcher returns a dispatcher delivering to fn. A non-positive window
// selects DefaultDebounceWindow.
func NewDispatcher(window time.Duration, fn func([]feed.Event)) *Dispatcher {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Dispatcher{window: window, fn: fn}
}

// Add queues an event and (re)starts the debounce timer.
func (d *Dispatcher) Add(ev feed.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = append(d.pending, ev)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() {
		d.fire(gen)
	})
}

// fire delivers the pending burst. The generation check makes a stale timer
// that raced a later Add or a Stop a no-op.
func (d *Dispatcher) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	events := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	d.fn(events)
}

// Flush delivers any pending burst immediately.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()
	d.fire(gen)
}

// Stop discards pending events and cancels the timer. The dispatcher cannot
// be reused afterwards.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
}
