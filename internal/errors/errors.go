package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common error types for the refresher
var (
	// Refresh cycle errors
	ErrMissingAuthState       = errors.New("no authorized oauth state")
	ErrInvalidAuthSchema      = errors.New("invalid auth schema")
	ErrTransportFailure       = errors.New("token exchange failed")
	ErrHostIntegrationMissing = errors.New("host entry point unavailable")
	ErrPatchTargetUnavailable = errors.New("authorize entry point never became available")

	// Storage errors
	ErrStoreCorrupted = errors.New("credential store corrupted")
	ErrStoreLocked    = errors.New("credential store locked")

	// Token endpoint errors
	ErrInvalidGrant        = errors.New("invalid grant")
	ErrInvalidClient       = errors.New("invalid client")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrUnsupportedGrant    = errors.New("unsupported grant type")

	// General errors
	ErrNotFound = errors.New("not found")
)

// ValidationError lists every required field found missing in one pass.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrInvalidAuthSchema, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidAuthSchema
}

// Add records a missing field.
func (e *ValidationError) Add(field string) {
	e.Missing = append(e.Missing, field)
}

// Err returns nil when nothing was recorded.
func (e *ValidationError) Err() error {
	if len(e.Missing) == 0 {
		return nil
	}
	return e
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// WrapCause wraps both a sentinel and the underlying cause so either can be
// matched with Is.
func WrapCause(sentinel, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return Wrapf(sentinel, format, args...)
	}
	return fmt.Errorf(format+": %w: %w", append(args, sentinel, cause)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
