// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// LLM and classification errors.
var (
	ErrInvalidURL      = errors.New("invalid endpoint URL")
	ErrInvalidResponse = errors.New("invalid response")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrParse           = errors.New("parse error")
	ErrInvalidCategory = errors.New("invalid category")
	ErrTimeout         = errors.New("request timed out")
	ErrMissingKey      = errors.New("no API key available")
	ErrBudgetExhausted = errors.New("LLM call budget exhausted")
)

// Storage and configuration errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrReadOnly      = errors.New("store is read-only")
)

// HTTPError carries a non-success status returned by a remote service.
type HTTPError struct {
	Body       string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d: %s", e.StatusCode, e.Body)
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
