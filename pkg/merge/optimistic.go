package merge

import (
	"github.com/setlive/setlive-go/pkg/models"
	"github.com/setlive/setlive-go/pkg/optimistic"
)

// Combine appends live speculative entries to the authoritative requests.
// A speculative entry whose normalized title matches an authoritative row is
// superseded: it is excluded from the result and its temp id reported in
// matched so the caller can schedule its retirement. Already-matched entries
// still lingering in their grace window are likewise excluded, which keeps
// an optimistic card from ever sharing the view with its authoritative
// counterpart for more than one merge cycle.
func Combine(auth []models.Request, entries []optimistic.Entry) (combined []models.Request, matched []string) {
	titles := make(map[string]struct{}, len(auth))
	for _, a := range auth {
		titles[models.NormalizedTitle(a.Title)] = struct{}{}
	}

	combined = append(combined, auth...)
	for _, e := range entries {
		if _, ok := titles[models.NormalizedTitle(e.Request.Title)]; ok {
			if !e.Matched() {
				matched = append(matched, e.TempID)
			}
			continue
		}
		if e.Matched() {
			continue
		}
		combined = append(combined, e.Request)
	}
	return combined, matched
}
