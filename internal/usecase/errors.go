package usecase

import "errors"

// Operation error taxonomy. Callers test with errors.Is.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("passenger not found")
	ErrConflict       = errors.New("concurrent modification")
	ErrPersistence    = errors.New("persistence failure")
	ErrPublish        = errors.New("publish failure")
)
