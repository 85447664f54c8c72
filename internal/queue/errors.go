package queue

import "errors"

var (
	// ErrUnknownBackend is returned by New for an unrecognized queue.backend.
	ErrUnknownBackend = errors.New("unknown queue backend")
	// ErrEmpty is returned by Dequeue when no job arrived before the timeout.
	ErrEmpty = errors.New("queue is empty")
)
