package engine

import "errors"

var (
	// ErrCapacityExceeded is returned by the registry when the number of live
	// sessions is at the configured ceiling.
	ErrCapacityExceeded = errors.New("session capacity exceeded")

	// ErrSessionNotFound is returned for operations on an unknown or expired
	// session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionEnded is returned when delivering events to a terminated session.
	ErrSessionEnded = errors.New("session already ended")
)
