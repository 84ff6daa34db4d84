// Package merge contains the pure reduction steps that turn raw store rows,
// cached snapshots and speculative entries into the final view model. No
// function here performs I/O or mutates its inputs.
package merge

import (
	"sort"

	"github.com/setlive/setlive-go/pkg/models"
)

// FoldRequests transforms raw request rows (with nested requester rows) into
// the public Request shape. Missing fields default to zero values: empty
// requester lists, zero votes, false flags. Nothing undefined escapes into
// the view model.
func FoldRequests(rows []models.RawRecord) []models.Request {
	out := make([]models.Request, 0, len(rows))
	for _, row := range rows {
		req := models.Request{
			ID:        row.String("id"),
			Title:     row.String("title"),
			Artist:    row.String("artist"),
			Votes:     row.Int("votes"),
			Locked:    row.Bool("locked"),
			Played:    row.Bool("played"),
			Status:    models.RequestStatus(row.String("status")),
			CreatedAt: row.Time("created_at"),
		}
		if req.Status == "" {
			req.Status = models.StatusPending
		}
		if req.Played {
			req.Status = models.StatusPlayed
		}

		nested := row.Records("requesters")
		req.Requesters = make([]models.Requester, 0, len(nested))
		for _, rr := range nested {
			req.Requesters = append(req.Requesters, foldRequester(rr))
		}
		sortRequesters(req.Requesters)

		out = append(out, req)
	}
	return out
}

func foldRequester(row models.RawRecord) models.Requester {
	src := models.Source(row.String("source"))
	if src == "" {
		src = models.SourceWeb
	}
	return models.Requester{
		ID:          row.String("id"),
		Name:        row.String("name"),
		PhotoURL:    row.String("photo_url"),
		Message:     row.String("message"),
		RequestedAt: row.Time("requested_at"),
		Source:      src,
	}
}

// Requester ordering by timestamp is display-significant.
func sortRequesters(rs []models.Requester) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].RequestedAt.Before(rs[j].RequestedAt)
	})
}

// FoldSetLists transforms raw set list rows (with nested song rows) into the
// public SetList shape, songs ordered by position.
func FoldSetLists(rows []models.RawRecord) []models.SetList {
	out := make([]models.SetList, 0, len(rows))
	for _, row := range rows {
		sl := models.SetList{
			ID:     row.String("id"),
			Name:   row.String("name"),
			Date:   row.Time("date"),
			Notes:  row.String("notes"),
			Active: row.Bool("active"),
		}
		nested := row.Records("songs")
		sl.Songs = make([]models.SetListSong, 0, len(nested))
		for _, sr := range nested {
			sl.Songs = append(sl.Songs, models.SetListSong{
				ID:       sr.String("id"),
				Title:    sr.String("title"),
				Artist:   sr.String("artist"),
				Position: sr.Int("position"),
			})
		}
		sort.SliceStable(sl.Songs, func(i, j int) bool {
			return sl.Songs[i].Position < sl.Songs[j].Position
		})
		out = append(out, sl)
	}
	return out
}
