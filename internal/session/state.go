package session

import "errors"

// State is the lifecycle position of a session.
type State int

const (
	Uninitialized State = iota
	Initializing
	Streaming
	Closed
	Faulted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	case Faulted:
		return "faulted"
	}
	return "unknown"
}

// Active reports whether the session accepts events.
func (s State) Active() bool {
	return s == Initializing || s == Streaming
}

var (
	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("session already initialized")
	// ErrInactive is returned when sending on a session that is not
	// initializing or streaming.
	ErrInactive = errors.New("session is not active")
)
