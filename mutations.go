package setlive

import (
	"context"
	"fmt"
	"time"

	"github.com/setlive/setlive-go/pkg/cache"
	"github.com/setlive/setlive-go/pkg/models"
	"github.com/setlive/setlive-go/pkg/store"
	"github.com/setlive/setlive-go/pkg/syncer"
)

// SubmitRequestParams is one attendee's song request.
type SubmitRequestParams struct {
	Title         string
	Artist        string
	RequesterName string
	PhotoURL      string
	Message       string
	Source        models.Source
}

// SubmitRequest inserts the request speculatively, writes it to the store
// and returns the temporary id. On a unique violation the speculative entry
// is rolled back and ErrAlreadyRequested returned; any other store failure
// also rolls back. The speculative entry itself is retired later, when the
// authoritative row arrives through the change feed.
func (b *Board) SubmitRequest(ctx context.Context, p SubmitRequestParams) (string, error) {
	if p.Title == "" || p.RequesterName == "" {
		return "", ErrMissingFields
	}
	if p.Source == "" {
		p.Source = models.SourceWeb
	}

	now := time.Now()
	tempID := models.NewTempID()
	b.optimistic.Add(tempID, models.Request{
		Title:     p.Title,
		Artist:    p.Artist,
		Status:    models.StatusPending,
		CreatedAt: now,
		Requesters: []models.Requester{{
			Name:        p.RequesterName,
			PhotoURL:    p.PhotoURL,
			Message:     p.Message,
			RequestedAt: now,
			Source:      p.Source,
		}},
	})

	// Background refresh so a racing confirmed write from another attendee
	// shows up promptly alongside the speculative card.
	go func() { _ = b.requests.Refresh(context.Background()) }()

	row, err := b.store.Insert(ctx, syncer.TableRequests, models.RawRecord{
		"title":      p.Title,
		"artist":     p.Artist,
		"owner_id":   b.cfg.OwnerID,
		"status":     string(models.StatusPending),
		"created_at": now.Format(time.RFC3339),
	})
	if err != nil {
		b.optimistic.Remove(tempID)
		if store.IsUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", ErrAlreadyRequested, p.Title)
		}
		return "", err
	}

	if _, err := b.store.Insert(ctx, syncer.TableRequesters, models.RawRecord{
		"request_id":   row.String("id"),
		"owner_id":     b.cfg.OwnerID,
		"name":         p.RequesterName,
		"photo_url":    p.PhotoURL,
		"message":      p.Message,
		"source":       string(p.Source),
		"requested_at": now.Format(time.RFC3339),
	}); err != nil {
		// The request row exists; the requester row will be reconciled by
		// the next full fetch.
		b.logger.Warn("requester insert failed", "request", row.String("id"), "error", err)
	}

	return tempID, nil
}

// Vote records one attendee's vote on a request. A duplicate vote inside the
// store's throttle window surfaces as ErrVoteThrottled.
func (b *Board) Vote(ctx context.Context, requestID, voterID string) error {
	if requestID == "" || voterID == "" {
		return ErrMissingFields
	}

	_, err := b.store.Insert(ctx, syncer.TableVotes, models.RawRecord{
		"request_id": requestID,
		"voter_id":   voterID,
		"owner_id":   b.cfg.OwnerID,
		"cast_at":    time.Now().Format(time.RFC3339),
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return fmt.Errorf("%w", ErrVoteThrottled)
		}
		return err
	}

	go func() { _ = b.requests.Refresh(context.Background()) }()
	return nil
}

// LockRequest pins one request to the top of the queue. Any previously
// locked request is unlocked first so at most one lock exists; the two
// writes land close together and the debounce window collapses them into a
// single refetch downstream.
func (b *Board) LockRequest(ctx context.Context, requestID string) error {
	locked, err := b.store.Query(ctx, syncer.TableRequests, store.QueryOpts{
		Filter: b.ownerFilter(map[string]any{"locked": true}),
	})
	if err != nil {
		return err
	}
	for _, row := range locked {
		if id := row.String("id"); id != "" && id != requestID {
			if _, err := b.store.Update(ctx, syncer.TableRequests, id, models.RawRecord{"locked": false}); err != nil {
				return err
			}
		}
	}

	if _, err := b.store.Update(ctx, syncer.TableRequests, requestID, models.RawRecord{"locked": true}); err != nil {
		return err
	}

	go func() { _ = b.requests.Refresh(context.Background()) }()
	return nil
}

// UnlockRequest releases the lock on a request.
func (b *Board) UnlockRequest(ctx context.Context, requestID string) error {
	if _, err := b.store.Update(ctx, syncer.TableRequests, requestID, models.RawRecord{"locked": false}); err != nil {
		return err
	}
	go func() { _ = b.requests.Refresh(context.Background()) }()
	return nil
}

// MarkPlayed flags a request as played, removing it from the active queue
// while keeping it in the played statistics.
func (b *Board) MarkPlayed(ctx context.Context, requestID string) error {
	_, err := b.store.Update(ctx, syncer.TableRequests, requestID, models.RawRecord{
		"played": true,
		"status": string(models.StatusPlayed),
		"locked": false,
	})
	if err != nil {
		return err
	}
	go func() { _ = b.requests.Refresh(context.Background()) }()
	return nil
}

// ResetQueue deletes every request on the board, clears speculative entries
// and invalidates the cached snapshot.
func (b *Board) ResetQueue(ctx context.Context) error {
	rows, err := b.store.Query(ctx, syncer.TableRequests, store.QueryOpts{
		Filter: b.ownerFilter(nil),
	})
	if err != nil {
		return err
	}
	for _, row := range rows {
		id := row.String("id")
		if id == "" {
			continue
		}
		if err := b.store.Delete(ctx, syncer.TableRequests, id); err != nil && !store.IsNotFound(err) {
			return err
		}
	}

	for _, e := range b.optimistic.List() {
		b.optimistic.Remove(e.TempID)
	}
	b.cache.Invalidate(cache.Key(syncer.TableRequests, b.cfg.OwnerID))

	return b.requests.Refresh(ctx)
}

// SaveSetList inserts or updates a set list and refreshes the collection.
func (b *Board) SaveSetList(ctx context.Context, sl models.SetList) (models.SetList, error) {
	if sl.Name == "" {
		return models.SetList{}, ErrMissingFields
	}

	fields := models.RawRecord{
		"name":     sl.Name,
		"date":     sl.Date.Format(time.RFC3339),
		"notes":    sl.Notes,
		"active":   sl.Active,
		"owner_id": b.cfg.OwnerID,
	}

	var row models.RawRecord
	var err error
	if sl.ID == "" {
		row, err = b.store.Insert(ctx, syncer.TableSetLists, fields)
	} else {
		row, err = b.store.Update(ctx, syncer.TableSetLists, sl.ID, fields)
	}
	if err != nil {
		return models.SetList{}, err
	}
	sl.ID = row.String("id")

	go func() { _ = b.setlists.Refresh(context.Background()) }()
	return sl, nil
}

// ActivateSetList makes one set list active, deactivating the rest. The
// at-most-one-active invariant is enforced by the store; this mirrors it on
// the write path.
func (b *Board) ActivateSetList(ctx context.Context, setListID string) error {
	active, err := b.store.Query(ctx, syncer.TableSetLists, store.QueryOpts{
		Filter: b.ownerFilter(map[string]any{"active": true}),
	})
	if err != nil {
		return err
	}
	for _, row := range active {
		if id := row.String("id"); id != "" && id != setListID {
			if _, err := b.store.Update(ctx, syncer.TableSetLists, id, models.RawRecord{"active": false}); err != nil {
				return err
			}
		}
	}

	if _, err := b.store.Update(ctx, syncer.TableSetLists, setListID, models.RawRecord{"active": true}); err != nil {
		return err
	}

	go func() { _ = b.setlists.Refresh(context.Background()) }()
	return nil
}

func (b *Board) ownerFilter(extra map[string]any) map[string]any {
	f := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		f[k] = v
	}
	if b.cfg.OwnerID != "" {
		f["owner_id"] = b.cfg.OwnerID
	}
	return f
}

