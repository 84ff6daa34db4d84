package setlive

import "errors"

var (
	// ErrAlreadyRequested reports that the song is already on the board.
	ErrAlreadyRequested = errors.New("song already requested")
	// ErrVoteThrottled reports that this voter must wait before voting on
	// the same request again.
	ErrVoteThrottled = errors.New("already voted, wait before voting again")
	// ErrMissingFields reports an incomplete mutation payload.
	ErrMissingFields = errors.New("required fields missing")
	// ErrBoardClosed reports an operation on a closed board.
	ErrBoardClosed = errors.New("board is closed")
	// ErrNotConfigured reports an Open call with neither an endpoint URL
	// nor an injected implementation for a required collaborator.
	ErrNotConfigured = errors.New("endpoint not configured")
)
