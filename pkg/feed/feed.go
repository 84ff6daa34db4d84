// Package feed is the push-notification channel primitive: a subscription to
// a table (optionally filtered) yielding tagged insert/update/delete events.
// The websocket implementation lives in ws.go; consumers depend only on the
// Feed interface.
package feed

import (
	"context"
	"errors"

	"github.com/setlive/setlive-go/pkg/models"
)

// Action tags a change event.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event is one change notification for a subscribed table.
type Event struct {
	// Channel is the subscription the event belongs to.
	Channel string
	Table   string
	Action  Action
	// Old is the pre-image for updates and deletes; New the post-image for
	// inserts and updates. Either may be nil.
	Old models.RawRecord
	New models.RawRecord
}

// Feed is a live connection to the change-feed endpoint.
type Feed interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	// Subscribe opens one channel on table, optionally narrowed by filter
	// (an owner-id equality expression). It returns the channel id and the
	// event stream. The stream is closed on Unsubscribe.
	Subscribe(table, filter string) (string, <-chan Event, error)
	Unsubscribe(id string) error
	// OnError registers a callback fired when the connection fails
	// mid-stream. At most one callback is retained.
	OnError(fn func(error))
}

var (
	ErrIDInUse      = errors.New("channel id already in use")
	ErrTimeout      = errors.New("timeout")
	ErrNoBaseURL    = errors.New("base url not set")
	ErrNotConnected = errors.New("feed is not connected")
)
