package domain

import "errors"

var (
	// ErrValidation marks input that failed domain validation.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a lookup for an entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an operation rejected because of entity state.
	ErrConflict = errors.New("conflict")
	// ErrDispatch marks a batch run that could not be started at all,
	// as opposed to per-item failures inside a running batch.
	ErrDispatch = errors.New("dispatch failed")
)
