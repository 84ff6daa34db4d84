package syncer

import (
	"context"

	"github.com/setlive/setlive-go/pkg/cache"
	"github.com/setlive/setlive-go/pkg/merge"
	"github.com/setlive/setlive-go/pkg/models"
	"github.com/setlive/setlive-go/pkg/store"
)

const (
	TableSetLists     = "setlists"
	TableSetListSongs = "setlist_songs"
)

// SetListsController keeps the operator's set lists in sync.
type SetListsController struct {
	*Controller[[]models.SetList]
}

// NewSetListsController builds the controller for ownerID's set lists.
func NewSetListsController(deps Deps, ownerID string) *SetListsController {
	fetch := func(ctx context.Context) ([]models.SetList, error) {
		rows, err := deps.Store.Query(ctx, TableSetLists, store.QueryOpts{
			Filter:  ownerFilterMap(ownerID),
			Expand:  []string{"songs"},
			OrderBy: "date",
			Desc:    true,
		})
		if err != nil {
			return nil, err
		}
		return merge.FoldSetLists(rows), nil
	}

	c := NewController("setlists", cache.Key(TableSetLists, ownerID), fetch, deps)
	filter := ownerFilter(ownerID)
	c.Watch(TableSetLists, filter).
		Watch(TableSetListSongs, filter)

	return &SetListsController{Controller: c}
}

// Lists returns the current set list snapshot.
func (sc *SetListsController) Lists() []models.SetList {
	data, _, _ := sc.Snapshot()
	return data
}

// Active returns the active set list, if any. The store enforces the
// at-most-one-active invariant; this only observes it, taking the first
// active list seen.
func (sc *SetListsController) Active() (models.SetList, bool) {
	for _, sl := range sc.Lists() {
		if sl.Active {
			return sl, true
		}
	}
	return models.SetList{}, false
}
