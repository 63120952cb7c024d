package core

import "errors"

var (
	// ErrRoomNotTracked is returned when an operation names a room the
	// controller has no state for.
	ErrRoomNotTracked = errors.New("room not tracked")
	// ErrStopped is returned when the controller is shut down.
	ErrStopped = errors.New("controller stopped")
)
