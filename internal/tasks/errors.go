package tasks

import "errors"

var (
	// ErrQueueFull is returned by Submit when the queue has no free slot.
	ErrQueueFull = errors.New("task queue is full")

	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("task pool is stopped")

	// ErrPanic wraps a panic recovered from the pipeline.
	ErrPanic = errors.New("pipeline panicked")
)
