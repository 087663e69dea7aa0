package scheduler

import "errors"

var (
	// ErrNilCallback reports an Add call with a nil function.
	ErrNilCallback = errors.New("scheduler: nil callback")

	// ErrArenaFull reports that the fixed-capacity task store has no free
	// slot; the task was not registered and the caller retains it.
	ErrArenaFull = errors.New("scheduler: task arena full")

	// ErrTerminated reports an Add call after Terminate.
	ErrTerminated = errors.New("scheduler: terminated")
)
