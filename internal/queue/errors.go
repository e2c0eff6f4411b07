package queue

import "errors"

// Sentinel errors for the queue package.
var (
	// ErrDuplicate is returned when an album is already pending, active,
	// or was completed earlier in this session.
	ErrDuplicate = errors.New("album already queued")

	// ErrNotFound is returned when no queue item has the given ID.
	ErrNotFound = errors.New("queue item not found")

	// ErrNotPending is returned when a pending-only operation targets an
	// item that has left the pending queue.
	ErrNotPending = errors.New("queue item is not pending")
)
