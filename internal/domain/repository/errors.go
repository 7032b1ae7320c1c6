package repository

import "errors"

// Store facts returned (optionally wrapped) by repository implementations.
// Use cases translate them into their own error taxonomy.
var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("version conflict")
)
