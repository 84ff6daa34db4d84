package merge

import (
	"sort"

	"github.com/setlive/setlive-go/pkg/models"
)

// Stats are aggregate counts over the full collection, including entries the
// active view filters out.
type Stats struct {
	Active int
	Played int
	Votes  int
}

// FilterActive splits out the unplayed requests and tallies statistics over
// the whole input. Played requests leave the active view but stay counted.
func FilterActive(reqs []models.Request) ([]models.Request, Stats) {
	active := make([]models.Request, 0, len(reqs))
	var stats Stats
	for _, r := range reqs {
		stats.Votes += r.Votes
		if r.Played {
			stats.Played++
			continue
		}
		stats.Active++
		active = append(active, r)
	}
	return active, stats
}

// SortQueue orders the request queue in place: locked requests first, then
// descending priority (requester count + votes), ties broken by descending
// requester count, remaining ties by most recent activity. The ordering is a
// priority function re-derived on every merge, never a cached position.
func SortQueue(reqs []models.Request) {
	sort.SliceStable(reqs, func(i, j int) bool {
		a, b := reqs[i], reqs[j]
		if a.Locked != b.Locked {
			return a.Locked
		}
		if ap, bp := a.Priority(), b.Priority(); ap != bp {
			return ap > bp
		}
		if la, lb := len(a.Requesters), len(b.Requesters); la != lb {
			return la > lb
		}
		return a.LatestActivity().After(b.LatestActivity())
	})
}
