package core

import "errors"

var (
	// ErrHubStopped is returned when an operation is submitted after Run has exited.
	ErrHubStopped = errors.New("hub stopped")
	// ErrEmptyRoom is returned for operations without a room id.
	ErrEmptyRoom = errors.New("empty room id")
)
