// Package apperr defines the sentinel error kinds shared across the service.
package apperr

import "errors"

var (
	// ErrNotFound means the referenced loan, item, or principal does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition means the requested action has no edge from the
	// loan's current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnauthorized means the acting role may not perform the action.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict means the loan changed between read and write. Retryable.
	ErrConflict = errors.New("concurrency conflict")
	// ErrValidation means the request failed a precondition
	// (missing rejection reason, no available copies, bad dates).
	ErrValidation = errors.New("validation failed")
	// ErrPersistence wraps storage failures. Retryable.
	ErrPersistence = errors.New("persistence error")
)
