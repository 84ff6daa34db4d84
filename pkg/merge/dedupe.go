package merge

import (
	"strings"

	"github.com/setlive/setlive-go/pkg/models"
)

// DedupeRequests merges requests that represent the same logical song,
// keyed by the normalized (title, artist) pair. For merged rows the
// requester lists are unioned, vote counts summed and lock flags OR'd.
// First-seen order of keys is preserved.
func DedupeRequests(reqs []models.Request) []models.Request {
	byKey := make(map[string]int, len(reqs))
	out := make([]models.Request, 0, len(reqs))

	for _, req := range reqs {
		key := req.Key()
		i, seen := byKey[key]
		if !seen {
			byKey[key] = len(out)
			cp := req
			cp.Requesters = append([]models.Requester(nil), req.Requesters...)
			out = append(out, cp)
			continue
		}

		merged := &out[i]
		merged.Votes += req.Votes
		merged.Locked = merged.Locked || req.Locked
		merged.Played = merged.Played || req.Played
		if merged.Played {
			merged.Status = models.StatusPlayed
		}
		// A zero CreatedAt means the row never carried a timestamp; it must
		// not win the earliest-creation rule.
		if !req.CreatedAt.IsZero() && (merged.CreatedAt.IsZero() || req.CreatedAt.Before(merged.CreatedAt)) {
			merged.CreatedAt = req.CreatedAt
		}
		// Keep an authoritative id when the first row seen was speculative.
		if models.IsTempID(merged.ID) && !models.IsTempID(req.ID) {
			merged.ID = req.ID
		}
		for _, rq := range req.Requesters {
			if !hasRequester(merged.Requesters, rq) {
				merged.Requesters = append(merged.Requesters, rq)
			}
		}
		sortRequesters(merged.Requesters)
	}

	return out
}

// hasRequester unions by name, except that a repeated name still counts as a
// new entry when it carries a distinct non-empty message: a message is user
// content worth preserving.
func hasRequester(existing []models.Requester, cand models.Requester) bool {
	name := strings.ToLower(strings.TrimSpace(cand.Name))
	for _, e := range existing {
		if strings.ToLower(strings.TrimSpace(e.Name)) != name {
			continue
		}
		if cand.Message == "" || cand.Message == e.Message {
			return true
		}
	}
	return false
}
