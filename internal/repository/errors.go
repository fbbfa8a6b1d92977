package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStatusConflict is returned when a status-guarded update matched no
	// row because the entity is no longer in the expected status.
	ErrStatusConflict = errors.New("status changed concurrently")
)
