package conversation

import "errors"

var (
	// ErrSessionNotFound is returned for lookups against an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidEvent is returned when an event constructor rejects its input.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidTurnCount is returned when a session is created with a
	// malformed turn ceiling.
	ErrInvalidTurnCount = errors.New("invalid turn count")
)
