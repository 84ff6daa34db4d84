package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setlive/setlive-go/pkg/models"
)

func TestDedupeAggregatesSameSong(t *testing.T) {
	reqs := []models.Request{
		{
			ID: "r1", Title: "Yesterday", Artist: "Beatles", Votes: 2,
			Requesters: []models.Requester{{Name: "A"}},
		},
		{
			ID: "r2", Title: "yesterday", Artist: "beatles", Votes: 3,
			Requesters: []models.Requester{{Name: "B"}},
		},
	}

	out := DedupeRequests(reqs)
	require.Len(t, out, 1)
	assert.Equal(t, 5, out[0].Votes)
	require.Len(t, out[0].Requesters, 2)
	names := []string{out[0].Requesters[0].Name, out[0].Requesters[1].Name}
	assert.ElementsMatch(t, []string{"A", "B"}, names)
}

func TestDedupeUnionsRequestersByName(t *testing.T) {
	reqs := []models.Request{
		{Title: "Imagine", Requesters: []models.Requester{{Name: "Ana"}}},
		{Title: "Imagine", Requesters: []models.Requester{{Name: "ana"}}},
	}

	out := DedupeRequests(reqs)
	require.Len(t, out, 1)
	assert.Len(t, out[0].Requesters, 1)
}

func TestDedupeKeepsRepeatedNameWithDistinctMessage(t *testing.T) {
	reqs := []models.Request{
		{Title: "Imagine", Requesters: []models.Requester{{Name: "Ana", Message: "for my mother"}}},
		{Title: "Imagine", Requesters: []models.Requester{{Name: "Ana", Message: "play it slow"}}},
		{Title: "Imagine", Requesters: []models.Requester{{Name: "Ana", Message: "for my mother"}}},
	}

	out := DedupeRequests(reqs)
	require.Len(t, out, 1)
	assert.Len(t, out[0].Requesters, 2, "distinct messages are preserved, identical ones dropped")
}

func TestDedupeLockAndPlayedAreORed(t *testing.T) {
	reqs := []models.Request{
		{Title: "x", Locked: false, Played: true},
		{Title: "x", Locked: true, Played: false},
	}

	out := DedupeRequests(reqs)
	require.Len(t, out, 1)
	assert.True(t, out[0].Locked)
	assert.True(t, out[0].Played)
	assert.Equal(t, models.StatusPlayed, out[0].Status)
}

func TestDedupePrefersAuthoritativeID(t *testing.T) {
	reqs := []models.Request{
		{ID: models.TempIDPrefix + "1", Title: "x"},
		{ID: "r9", Title: "x"},
	}
	out := DedupeRequests(reqs)
	require.Len(t, out, 1)
	assert.Equal(t, "r9", out[0].ID)
}

func TestDedupeKeepsEarliestCreation(t *testing.T) {
	early := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	reqs := []models.Request{
		{Title: "x", CreatedAt: early.Add(time.Hour)},
		{Title: "x", CreatedAt: early},
		{Title: "x"}, // no timestamp; must not reset the merged one
	}
	out := DedupeRequests(reqs)
	require.Len(t, out, 1)
	assert.Equal(t, early, out[0].CreatedAt)
}

func TestDedupeZeroTimestampFirstSeen(t *testing.T) {
	stamped := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	reqs := []models.Request{
		{Title: "x"},
		{Title: "x", CreatedAt: stamped},
	}
	out := DedupeRequests(reqs)
	require.Len(t, out, 1)
	assert.Equal(t, stamped, out[0].CreatedAt, "a stamped duplicate fills in a missing timestamp")
}

func TestDedupeDoesNotMutateInput(t *testing.T) {
	a := models.Request{Title: "x", Requesters: []models.Requester{{Name: "A"}}}
	b := models.Request{Title: "x", Requesters: []models.Requester{{Name: "B"}}}
	in := []models.Request{a, b}

	_ = DedupeRequests(in)

	assert.Len(t, in[0].Requesters, 1)
	assert.Len(t, in[1].Requesters, 1)
}
