package setlive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setlive/setlive-go/pkg/models"
	"github.com/setlive/setlive-go/pkg/store"
	"github.com/setlive/setlive-go/pkg/syncer"
)

func TestSubmitRequestValidation(t *testing.T) {
	b, _, _ := openTestBoard(t, testConfig(t))

	_, err := b.SubmitRequest(context.Background(), SubmitRequestParams{Title: "Hey Jude"})
	assert.ErrorIs(t, err, ErrMissingFields, "requester name is required")
	_, err = b.SubmitRequest(context.Background(), SubmitRequestParams{RequesterName: "Ana"})
	assert.ErrorIs(t, err, ErrMissingFields, "title is required")
}

func TestSubmitRequestSpeculativeThenStored(t *testing.T) {
	b, s, _ := openTestBoard(t, testConfig(t))

	tempID, err := b.SubmitRequest(context.Background(), SubmitRequestParams{
		Title:         "Hey Jude",
		Artist:        "The Beatles",
		RequesterName: "Ana",
		Message:       "for my sister",
	})
	require.NoError(t, err)
	assert.True(t, models.IsTempID(tempID))

	// The speculative card is visible immediately.
	queue, _ := b.Requests().Queue()
	require.Len(t, queue, 1)
	assert.Equal(t, "Hey Jude", queue[0].Title)

	reqRows := s.Rows(syncer.TableRequests)
	require.Len(t, reqRows, 1)
	assert.Equal(t, "owner-1", reqRows[0].String("owner_id"))

	rqRows := s.Rows(syncer.TableRequesters)
	require.Len(t, rqRows, 1)
	assert.Equal(t, "Ana", rqRows[0].String("name"))
	assert.Equal(t, reqRows[0].String("id"), rqRows[0].String("request_id"))
	assert.Equal(t, string(models.SourceWeb), rqRows[0].String("source"), "source defaults to web")
}

func TestSubmitRequestDuplicateRollsBack(t *testing.T) {
	b, s, _ := openTestBoard(t, testConfig(t))
	s.InsertHook = func(table string, rec models.RawRecord) error {
		if table == syncer.TableRequests {
			return &store.Error{Code: store.CodeUniqueViolation, Message: "already requested"}
		}
		return nil
	}

	_, err := b.SubmitRequest(context.Background(), SubmitRequestParams{
		Title:         "Hey Jude",
		RequesterName: "Ana",
	})
	assert.ErrorIs(t, err, ErrAlreadyRequested)

	require.Eventually(t, func() bool {
		queue, _ := b.Requests().Queue()
		return len(queue) == 0
	}, time.Second, 5*time.Millisecond, "the speculative card is rolled back")
}

func TestSubmitRequestStoreFailureRollsBack(t *testing.T) {
	b, s, _ := openTestBoard(t, testConfig(t))
	s.InsertHook = func(table string, rec models.RawRecord) error {
		return errors.New("dial tcp: connection refused")
	}

	_, err := b.SubmitRequest(context.Background(), SubmitRequestParams{
		Title:         "Hey Jude",
		RequesterName: "Ana",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyRequested)

	require.Eventually(t, func() bool {
		queue, _ := b.Requests().Queue()
		return len(queue) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestVote(t *testing.T) {
	b, s, _ := openTestBoard(t, testConfig(t))

	assert.ErrorIs(t, b.Vote(context.Background(), "", "voter-1"), ErrMissingFields)
	assert.ErrorIs(t, b.Vote(context.Background(), "r1", ""), ErrMissingFields)

	require.NoError(t, b.Vote(context.Background(), "r1", "voter-1"))
	rows := s.Rows(syncer.TableVotes)
	require.Len(t, rows, 1)
	assert.Equal(t, "r1", rows[0].String("request_id"))

	s.InsertHook = func(string, models.RawRecord) error {
		return &store.Error{Code: store.CodeUniqueViolation, Message: "vote throttled"}
	}
	assert.ErrorIs(t, b.Vote(context.Background(), "r1", "voter-1"), ErrVoteThrottled)
}

func TestLockRequestKeepsSingleLock(t *testing.T) {
	b, s, _ := openTestBoard(t, testConfig(t))
	s.Seed(syncer.TableRequests, []models.RawRecord{
		{"id": "r1", "owner_id": "owner-1", "title": "Hey Jude", "locked": true},
		{"id": "r2", "owner_id": "owner-1", "title": "Help", "locked": false},
	})

	require.NoError(t, b.LockRequest(context.Background(), "r2"))

	var lockedIDs []string
	for _, row := range s.Rows(syncer.TableRequests) {
		if row.Bool("locked") {
			lockedIDs = append(lockedIDs, row.String("id"))
		}
	}
	assert.Equal(t, []string{"r2"}, lockedIDs, "at most one request is locked")

	require.NoError(t, b.UnlockRequest(context.Background(), "r2"))
	for _, row := range s.Rows(syncer.TableRequests) {
		assert.False(t, row.Bool("locked"))
	}
}

func TestMarkPlayed(t *testing.T) {
	b, s, _ := openTestBoard(t, testConfig(t))
	s.Seed(syncer.TableRequests, []models.RawRecord{
		{"id": "r1", "owner_id": "owner-1", "title": "Hey Jude", "locked": true},
	})

	require.NoError(t, b.MarkPlayed(context.Background(), "r1"))

	row := s.Rows(syncer.TableRequests)[0]
	assert.True(t, row.Bool("played"))
	assert.False(t, row.Bool("locked"), "playing releases the lock")
	assert.Equal(t, string(models.StatusPlayed), row.String("status"))
}

func TestResetQueue(t *testing.T) {
	b, s, _ := openTestBoard(t, testConfig(t))
	s.Seed(syncer.TableRequests, []models.RawRecord{
		{"id": "r1", "owner_id": "owner-1", "title": "Hey Jude"},
		{"id": "r2", "owner_id": "owner-1", "title": "Help"},
	})

	_, err := b.SubmitRequest(context.Background(), SubmitRequestParams{
		Title:         "Let It Be",
		RequesterName: "Ana",
	})
	require.NoError(t, err)

	// Let the submit's background refresh settle before resetting.
	require.Eventually(t, func() bool {
		data, _, _ := b.Requests().Snapshot()
		return len(data) == 3
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, b.ResetQueue(context.Background()))

	// Submit added a third row; reset removes everything.
	assert.Empty(t, s.Rows(syncer.TableRequests))
	queue, stats := b.Requests().Queue()
	assert.Empty(t, queue)
	assert.Zero(t, stats.Active)
}

func TestSaveSetListInsertAndUpdate(t *testing.T) {
	b, s, _ := openTestBoard(t, testConfig(t))

	_, err := b.SaveSetList(context.Background(), models.SetList{})
	assert.ErrorIs(t, err, ErrMissingFields)

	sl, err := b.SaveSetList(context.Background(), models.SetList{Name: "Friday night"})
	require.NoError(t, err)
	require.NotEmpty(t, sl.ID)

	sl.Name = "Friday late night"
	again, err := b.SaveSetList(context.Background(), sl)
	require.NoError(t, err)
	assert.Equal(t, sl.ID, again.ID)

	rows := s.Rows(syncer.TableSetLists)
	require.Len(t, rows, 1)
	assert.Equal(t, "Friday late night", rows[0].String("name"))
}

func TestActivateSetListDeactivatesOthers(t *testing.T) {
	b, s, _ := openTestBoard(t, testConfig(t))
	s.Seed(syncer.TableSetLists, []models.RawRecord{
		{"id": "sl1", "owner_id": "owner-1", "name": "Friday", "active": true},
		{"id": "sl2", "owner_id": "owner-1", "name": "Saturday", "active": false},
	})

	require.NoError(t, b.ActivateSetList(context.Background(), "sl2"))

	var activeIDs []string
	for _, row := range s.Rows(syncer.TableSetLists) {
		if row.Bool("active") {
			activeIDs = append(activeIDs, row.String("id"))
		}
	}
	assert.Equal(t, []string{"sl2"}, activeIDs)
}
