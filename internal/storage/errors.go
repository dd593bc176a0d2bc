package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when seeding a record whose key already
	// exists. The event log is append-only.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPaginationLimit is returned when a paginated read exceeds its page ceiling.
	ErrPaginationLimit = errors.New("pagination limit exceeded")
)
