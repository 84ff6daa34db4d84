// Package models defines the entities of the request board and the raw
// record type used at the boundary to the row store and the change feed.
package models

import (
	"strings"
	"time"
)

// Source tags where a requester submitted from.
type Source string

const (
	SourceWeb   Source = "web"
	SourceKiosk Source = "kiosk"
)

// RequestStatus is the lifecycle state of a request.
type RequestStatus string

const (
	StatusPending RequestStatus = "pending"
	StatusPlayed  RequestStatus = "played"
	StatusDropped RequestStatus = "dropped"
)

// Requester is one attendee's instance of requesting or endorsing a song.
type Requester struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	Message     string    `json:"message,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	Source      Source    `json:"source"`
}

// Request is a song requested by one or more attendees. The ID is either an
// authoritative store id or a temporary id while the request is speculative.
type Request struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Artist     string        `json:"artist"`
	Votes      int           `json:"votes"`
	Locked     bool          `json:"locked"`
	Played     bool          `json:"played"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	Requesters []Requester   `json:"requesters"`
}

// Priority is the queue ranking score: endorsement count plus votes.
func (r Request) Priority() int {
	return len(r.Requesters) + r.Votes
}

// LatestActivity returns the most recent of the request's creation time and
// any requester timestamp. Used as the final sort tie-breaker.
func (r Request) LatestActivity() time.Time {
	latest := r.CreatedAt
	for _, rq := range r.Requesters {
		if rq.RequestedAt.After(latest) {
			latest = rq.RequestedAt
		}
	}
	return latest
}

// SongKey normalizes a (title, artist) pair into the identity used for
// deduplication and optimistic matching.
func SongKey(title, artist string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "\x00" + strings.ToLower(strings.TrimSpace(artist))
}

// Key returns the request's normalized song identity.
func (r Request) Key() string {
	return SongKey(r.Title, r.Artist)
}

// NormalizedTitle is the title-only identity used when matching optimistic
// entries against authoritative rows.
func NormalizedTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// SetListSong is one positioned song reference inside a set list.
type SetListSong struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Position int    `json:"position"`
}

// SetList is a named, dated collection of songs an operator curates.
type SetList struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Date   time.Time     `json:"date"`
	Notes  string        `json:"notes,omitempty"`
	Active bool          `json:"active"`
	Songs  []SetListSong `json:"songs"`
}
