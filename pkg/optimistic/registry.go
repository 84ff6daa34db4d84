// Package optimistic tracks speculative entities: locally-originated
// mutations shown to the user before the store confirms them.
package optimistic

import (
	"sync"
	"time"

	"github.com/setlive/setlive-go/pkg/models"
)

// DefaultGrace is how long a matched entry lingers before removal. The delay
// covers the window where the optimistic card would otherwise disappear one
// merge cycle before its authoritative counterpart appears.
const DefaultGrace = 100 * time.Millisecond

// InitialVotes is the vote count every speculative request starts with.
const InitialVotes = 0

// Entry is one speculative request keyed by its temporary id.
type Entry struct {
	TempID    string
	Request   models.Request
	CreatedAt time.Time

	matched bool
}

// Matched reports whether an authoritative row has superseded this entry.
func (e Entry) Matched() bool {
	return e.matched
}

// Registry holds speculative requests in insertion order. Safe for
// concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
	timers  map[string]*time.Timer
	grace   time.Duration
	closed  bool
	now     func() time.Time
}

// NewRegistry returns a registry retiring matched entries after grace.
// A non-positive grace selects DefaultGrace.
func NewRegistry(grace time.Duration) *Registry {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Registry{
		entries: make(map[string]*Entry),
		timers:  make(map[string]*time.Timer),
		grace:   grace,
		now:     time.Now,
	}
}

// Add inserts a speculative request under tempID. The entry is sanitized so
// the merge layer can render it: Played is forced false and Votes to the
// initial value regardless of what the caller supplied. A request that
// arrived "played" would vanish from the active queue before confirmation.
func (r *Registry) Add(tempID string, req models.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	req.ID = tempID
	req.Played = false
	req.Votes = InitialVotes
	if req.Status == "" || req.Status == models.StatusPlayed {
		req.Status = models.StatusPending
	}
	now := r.now()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}

	if _, exists := r.entries[tempID]; !exists {
		r.order = append(r.order, tempID)
	}
	r.entries[tempID] = &Entry{TempID: tempID, Request: req, CreatedAt: now}
}

// Remove drops the entry for tempID. Removing an unknown id is a no-op.
func (r *Registry) Remove(tempID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(tempID)
}

func (r *Registry) removeLocked(tempID string) {
	if t, ok := r.timers[tempID]; ok {
		t.Stop()
		delete(r.timers, tempID)
	}
	if _, ok := r.entries[tempID]; !ok {
		return
	}
	delete(r.entries, tempID)
	for i, id := range r.order {
		if id == tempID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// MarkMatched records that an authoritative row supersedes tempID and
// schedules its removal after the grace delay. Marking twice, or marking an
// unknown id, is a no-op.
func (r *Registry) MarkMatched(tempID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	e, ok := r.entries[tempID]
	if !ok || e.matched {
		return
	}
	e.matched = true
	r.timers[tempID] = time.AfterFunc(r.grace, func() {
		r.Remove(tempID)
	})
}

// List returns the live entries in insertion order.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		if e, ok := r.entries[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close drops all entries and stops pending retirement timers.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id := range r.entries {
		r.removeLocked(id)
	}
}
