package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record or state file does
	// not exist. Callers treat absence as a cold start, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrCorruptState is returned when a persisted state file exists but
	// cannot be parsed. Callers must fail loudly rather than synthesize
	// defaults: a silent reset would break sequence and rolling-window
	// continuity.
	ErrCorruptState = errors.New("corrupt persisted state")

	// ErrDuplicateKey is returned when inserting a record whose key
	// already exists in an append-only store.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
