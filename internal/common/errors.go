// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound = errors.New("not found")

	// Upload errors.
	ErrNoFile           = errors.New("no file uploaded")
	ErrLoad             = errors.New("failed to load spreadsheet")
	ErrMissingColumns   = errors.New("missing required columns")
	ErrColumnOutOfRange = errors.New("column index out of range")
	ErrInvalidColumn    = errors.New("invalid column index")

	// Classification errors.
	ErrArtifact             = errors.New("invalid model artifact")
	ErrClassificationFailed = errors.New("classification failed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError reports a rejected request. Nothing has been written when
// one is returned, and the message is safe to flash back to the user.
type ValidationError struct {
	Err         error
	UserMessage string
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed: %v", e.Err)
	}
	return "validation failed: " + e.UserMessage
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps a validation sentinel with a user-facing message.
func NewValidationError(userMessage string, err error) error {
	return &ValidationError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsValidation reports whether err is (or wraps) a ValidationError and
// returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
