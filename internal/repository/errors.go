package repository

import "errors"

var (
	// ErrNotFound is returned when no row matched.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateRequest is returned when an insert hit the identifier
	// uniqueness constraint. Callers treat this as "already queued".
	ErrDuplicateRequest = errors.New("repository: request already queued for identifier")
)
