package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrLockedOut means the identifier has exceeded the failed-attempt
	// threshold within the lockout window.
	ErrLockedOut = errors.New("account is temporarily locked")

	// ErrServiceUnavailable is the generic failure surfaced when the
	// language-model gateway cannot produce a reply.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ValidationError collects every violated credential rule so callers can
// render complete guidance rather than one failure at a time.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Violations, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrBadRequest
}

// InvalidCredentialsError is returned for a wrong password or an unknown
// identifier. The two cases are indistinguishable to the caller.
type InvalidCredentialsError struct {
	RemainingAttempts int
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials (%d attempts remaining)", e.RemainingAttempts)
}

func (e *InvalidCredentialsError) Unwrap() error {
	return ErrUnauthorized
}
