package apperr

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates a uniqueness or state conflict (HTTP 409).
var ErrConflict = errors.New("conflict")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Dispatch and tracking errors. Each wraps one of the base sentinels so
// transport layers can map them by class with errors.Is.
var (
	ErrNoEligibleCouriers = fmt.Errorf("no eligible couriers: %w", ErrInvalid)
	ErrInvalidCoordinates = fmt.Errorf("invalid coordinates: %w", ErrInvalid)
	ErrInvalidTransition  = fmt.Errorf("invalid status transition: %w", ErrInvalid)

	ErrStaleOffer      = fmt.Errorf("offer is no longer active: %w", ErrConflict)
	ErrAlreadyTerminal = fmt.Errorf("order already terminal: %w", ErrConflict)

	ErrOrderNotFound = fmt.Errorf("order: %w", ErrNotFound)
)

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so retry loops give up on it immediately.
func Permanent(err error) error {
	return PermanentError{Err: err}
}

// IsPermanent reports whether err, or anything it wraps, is permanent.
func IsPermanent(err error) bool {
	var pe PermanentError
	return errors.As(err, &pe)
}
