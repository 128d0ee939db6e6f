package core

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingField     = errors.New("missing field")
	ErrNonPositiveHours = errors.New("non-positive hours")
	ErrDailyCapExceeded = errors.New("daily cap exceeded")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidHours     = errors.New("invalid hours")
	ErrDuplicateID      = errors.New("duplicate entry id")
	ErrDescriptionLong  = errors.New("description too long")

	// ErrPersistence marks a failed write to the backing store. The in-memory
	// state stays authoritative when it is returned.
	ErrPersistence = errors.New("persistence failure")
	// ErrRemoteAdvisory marks an unreachable or broken anomaly checker.
	ErrRemoteAdvisory = errors.New("remote advisory failure")
)

// ValidationError is a recoverable rejection of user input. It unwraps to its
// Kind so callers can match it with errors.Is.
type ValidationError struct {
	Kind    error
	Field   string
	Message string

	// Logged and Cap are set for ErrDailyCapExceeded.
	Logged decimal.Decimal
	Cap    decimal.Decimal
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// IsValidation reports whether err is a user-correctable rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
