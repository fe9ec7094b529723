package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPermissionDenied is returned when an actor attempts a transition
	// or edit their role does not allow in the quote's current state
	ErrPermissionDenied = errors.New("permission denied")

	// ErrQuoteLocked is returned for general edits on a quote whose status
	// is in the locked set
	ErrQuoteLocked = errors.New("quote is locked")

	// ErrCorruptHeaderData signals that additional_headers_data does not
	// match additional_report_headers on a stored item
	ErrCorruptHeaderData = errors.New("additional header data does not match header count")

	// ErrQuotaExceeded is returned when the requester's monthly send quota
	// would be exceeded
	ErrQuotaExceeded = errors.New("monthly send quota exceeded")

	// ErrNoLabContact is returned on submission when the lab has no contact
	// address on file
	ErrNoLabContact = errors.New("lab has no contact address on file")
)

// ValidationError is a recoverable request error rejected before any mutation
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// NewValidationError builds a field-level validation error
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CooldownError is returned when a manual tracking refresh is attempted
// before the cooldown window has elapsed
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("tracking refresh cooling down, retry in %s", e.Remaining.Round(time.Second))
}

// IsCooldown reports whether err is a cooldown rejection and returns the
// remaining wait when it is
func IsCooldown(err error) (time.Duration, bool) {
	var ce *CooldownError
	if errors.As(err, &ce) {
		return ce.Remaining, true
	}
	return 0, false
}
