package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSongKeyNormalizes(t *testing.T) {
	assert.Equal(t, SongKey("Yesterday", "Beatles"), SongKey("  yesterday ", "BEATLES"))
	assert.NotEqual(t, SongKey("Yesterday", "Beatles"), SongKey("Yesterday", "Boyz II Men"))
}

func TestTempID(t *testing.T) {
	id := NewTempID()
	assert.True(t, IsTempID(id))
	assert.False(t, IsTempID("req-42"))
	assert.NotEqual(t, id, NewTempID())
}

func TestPriority(t *testing.T) {
	r := Request{
		Votes:      3,
		Requesters: []Requester{{Name: "ana"}, {Name: "bo"}},
	}
	assert.Equal(t, 5, r.Priority())
}

func TestLatestActivity(t *testing.T) {
	base := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	r := Request{
		CreatedAt: base,
		Requesters: []Requester{
			{RequestedAt: base.Add(time.Minute)},
			{RequestedAt: base.Add(3 * time.Minute)},
		},
	}
	assert.Equal(t, base.Add(3*time.Minute), r.LatestActivity())

	empty := Request{CreatedAt: base}
	assert.Equal(t, base, empty.LatestActivity())
}

func TestRawRecordDefaults(t *testing.T) {
	row := RawRecord{
		"title": "Imagine",
		"votes": float64(4),
		"flag":  true,
	}

	assert.Equal(t, "Imagine", row.String("title"))
	assert.Equal(t, "", row.String("missing"))
	assert.Equal(t, 4, row.Int("votes"))
	assert.Equal(t, 0, row.Int("missing"))
	assert.True(t, row.Bool("flag"))
	assert.False(t, row.Bool("missing"))
	assert.True(t, row.Time("missing").IsZero())
}

func TestRawRecordTime(t *testing.T) {
	ts := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	row := RawRecord{
		"a": ts.Format(time.RFC3339),
		"b": ts,
		"c": "not a timestamp",
	}
	assert.Equal(t, ts, row.Time("a").UTC())
	assert.Equal(t, ts, row.Time("b"))
	assert.True(t, row.Time("c").IsZero())
}

func TestRawRecordNested(t *testing.T) {
	row := RawRecord{
		"requesters": []any{
			map[string]any{"name": "ana"},
			"garbage",
			map[any]any{"name": "bo"},
		},
	}
	nested := row.Records("requesters")
	assert.Len(t, nested, 2)
	assert.Equal(t, "ana", nested[0].String("name"))
	assert.Equal(t, "bo", nested[1].String("name"))

	assert.Nil(t, row.Records("missing"))
}
