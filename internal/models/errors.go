package models

import (
	"errors"
	"fmt"
)

// Error kinds shared by the lifecycle, storage and service layers.
// Callers wrap them with context and match with errors.Is.
var (
	// ErrNotFound is returned when a swap, user or item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller is not a party to the swap
	// or does not hold the role the action requires.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when an operation is not legal from the
	// swap's current status.
	ErrConflict = errors.New("conflict")

	// ErrVersionConflict is returned by stores when a conditional update
	// lost a race with another writer. It is also an ErrConflict.
	ErrVersionConflict = fmt.Errorf("%w: stale swap version", ErrConflict)

	// ErrSelfSwap is returned when requester and provider are the same user.
	ErrSelfSwap = fmt.Errorf("%w: cannot swap with yourself", ErrValidation)
)

// ErrorKind returns a stable machine-readable kind for err.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
