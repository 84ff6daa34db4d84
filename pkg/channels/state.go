package channels

import "fmt"

// State is the registry's single coarse connection-state value.
type State int

const (
	StateUnknown State = iota
	StateDisconnected
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// TransitionTo validates a state change and returns the new state, or an
// error when the transition is not allowed.
func (s State) TransitionTo(newState State) (State, error) {
	switch s {
	case StateDisconnected:
		if newState == StateConnecting {
			return newState, nil
		}
	case StateConnecting:
		switch newState {
		case StateConnected, StateError, StateDisconnected:
			return newState, nil
		}
	case StateConnected:
		// Connecting is reachable from connected when a reconnect replaces
		// a live connection.
		switch newState {
		case StateError, StateDisconnected, StateConnecting:
			return newState, nil
		}
	case StateError:
		switch newState {
		case StateConnecting, StateDisconnected:
			return newState, nil
		}
	}

	return StateUnknown, fmt.Errorf("invalid state transition from %v to %v", s, newState)
}
