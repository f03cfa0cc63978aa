package models

import "errors"

// Common errors for staging operations.
var (
	// Task errors
	ErrTaskNotFound = errors.New("task not found")

	// Replica errors
	ErrReplicaNotFound  = errors.New("replica not found")
	ErrDuplicateReplica = errors.New("replica already exists")

	// Validation errors
	ErrEmptyRequest      = errors.New("stage request contains no files")
	ErrInvalidStatus     = errors.New("unknown status")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("transition not permitted")
)

// IsValidationError reports whether err was caused by bad caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyRequest) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidTransition)
}
