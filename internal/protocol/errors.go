package protocol

import "errors"

var (
	// ErrUnhandledCommand is returned for a command variant the client does
	// not know. The command vocabulary is versioned with the server, so this
	// means the two sides disagree.
	ErrUnhandledCommand = errors.New("unhandled command")

	// ErrContractViolation is returned when a known command arrives with a
	// required field unset.
	ErrContractViolation = errors.New("protocol contract violation")

	// ErrInvalidEvent is returned when a user event does not carry exactly
	// one kind.
	ErrInvalidEvent = errors.New("invalid user event")
)
