package syncer

import (
	"context"
	"fmt"

	"github.com/setlive/setlive-go/pkg/cache"
	"github.com/setlive/setlive-go/pkg/merge"
	"github.com/setlive/setlive-go/pkg/models"
	"github.com/setlive/setlive-go/pkg/optimistic"
	"github.com/setlive/setlive-go/pkg/store"
)

const (
	// TableRequests and its children are the tables whose changes can alter
	// the request queue view.
	TableRequests   = "requests"
	TableRequesters = "requesters"
	TableVotes      = "votes"
)

// RequestsController keeps the request queue in sync and merges speculative
// entries into every published view.
type RequestsController struct {
	*Controller[[]models.Request]
	optimistic *optimistic.Registry
}

// NewRequestsController builds the controller for ownerID's request queue.
func NewRequestsController(deps Deps, opt *optimistic.Registry, ownerID string) *RequestsController {
	fetch := func(ctx context.Context) ([]models.Request, error) {
		rows, err := deps.Store.Query(ctx, TableRequests, store.QueryOpts{
			Filter:  ownerFilterMap(ownerID),
			Expand:  []string{TableRequesters},
			OrderBy: "created_at",
		})
		if err != nil {
			return nil, err
		}
		return merge.DedupeRequests(merge.FoldRequests(rows)), nil
	}

	c := NewController("requests", cache.Key(TableRequests, ownerID), fetch, deps)
	filter := ownerFilter(ownerID)
	c.Watch(TableRequests, filter).
		Watch(TableRequesters, filter).
		Watch(TableVotes, filter)

	return &RequestsController{Controller: c, optimistic: opt}
}

// Queue returns the active request queue: authoritative rows combined with
// live speculative entries, played requests filtered out, sorted by the
// queue priority function. Stats cover the full collection including played
// entries. Speculative entries superseded by an authoritative row are
// scheduled for retirement as a side effect.
func (rc *RequestsController) Queue() ([]models.Request, merge.Stats) {
	data, _, _ := rc.Snapshot()
	combined, matched := merge.Combine(data, rc.optimistic.List())
	for _, tempID := range matched {
		rc.optimistic.MarkMatched(tempID)
	}
	active, stats := merge.FilterActive(combined)
	merge.SortQueue(active)
	return active, stats
}

func ownerFilterMap(ownerID string) map[string]any {
	if ownerID == "" {
		return nil
	}
	return map[string]any{"owner_id": ownerID}
}

func ownerFilter(ownerID string) string {
	if ownerID == "" {
		return ""
	}
	return fmt.Sprintf("owner_id=eq.%s", ownerID)
}
