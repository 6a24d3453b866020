package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure for the purpose of normalization.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindUnauthorized     Kind = "unauthorized"
	KindTokenExpired     Kind = "token_expired"
	KindTokenRevoked     Kind = "token_revoked"
	KindTooManyRequests  Kind = "too_many_requests"
	KindValidationFailed Kind = "validation_failed"
	KindInternal         Kind = "internal"
)

// Error is a typed failure raised by the auth core.
type Error struct {
	Kind       Kind
	Message    string
	Err        error         // underlying cause, never shown to clients
	RetryAfter time.Duration // only meaningful for KindTooManyRequests
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and message, so copies
// carrying a cause or retry hint still match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

// WithRetryAfter returns a copy of e carrying a back-off hint.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	c := *e
	c.RetryAfter = d
	return &c
}

var (
	// Credential errors
	ErrCredentialNotFound = New(KindNotFound, "Credential not found")
	ErrInvalidCredentials = New(KindUnauthorized, "Incorrect email or password")
	ErrAccountInactive    = New(KindUnauthorized, "Account is not active")
	ErrUnauthenticated    = New(KindUnauthorized, "Please authenticate")

	// Token errors
	ErrInvalidToken = New(KindUnauthorized, "Invalid token")
	ErrTokenExpired = New(KindTokenExpired, "Token expired")
	ErrTokenRevoked = New(KindTokenRevoked, "Token revoked")

	// Rate limiting
	ErrTooManyRequests = New(KindTooManyRequests, "Too many requests, please try again later")

	// Validation
	ErrValidation      = New(KindValidationFailed, "Validation failed")
	ErrEmailTaken      = New(KindValidationFailed, "Email already taken")
	ErrInvalidEmail    = New(KindValidationFailed, "Invalid email")
	ErrWeakPassword    = New(KindValidationFailed, "Password does not meet requirements")
	ErrMissingArgument = New(KindValidationFailed, "Missing required field")

	// General errors
	ErrNotFound     = New(KindNotFound, "Not found")
	ErrUserNotFound = New(KindNotFound, "User not found")
	ErrStoreTimeout = New(KindInternal, "store operation timed out")
	ErrInternal     = New(KindInternal, "internal error")
)

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StoreFailure classifies an error returned by a revocation or counter
// store. Deadline overruns become ErrStoreTimeout, anything else ErrInternal.
func StoreFailure(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrStoreTimeout.WithCause(fmt.Errorf("%s: %w", op, err))
	}
	return ErrInternal.WithCause(fmt.Errorf("%s: %w", op, err))
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
