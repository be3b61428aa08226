// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Pipeline errors.
	ErrNoExtractableData = errors.New("no extractable data")

	// Provider errors.
	ErrRateLimit       = errors.New("rate limit exceeded")
	ErrProviderTimeout = errors.New("categorization provider timed out")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError reports malformed submission metadata or an unparseable
// field. It is always recoverable by the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a field-level validation error.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// FieldFailure is one entry in the per-record detail returned when an
// approval is blocked. RecordID identifies the staged candidate.
type FieldFailure struct {
	RecordID string `json:"record_id"`
	Field    string `json:"field"`
	Reason   string `json:"reason"`
}

// ValidationFailures aggregates the field failures that blocked a commit.
type ValidationFailures struct {
	Failures []FieldFailure
}

func (e *ValidationFailures) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s.%s: %s", f.RecordID, f.Field, f.Reason))
	}
	return "validation failures: " + strings.Join(parts, "; ")
}

// InvalidStateError reports an operation attempted outside its legal
// state-machine transition. It is surfaced to the caller, never retried.
type InvalidStateError struct {
	Op      string
	Current string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s is not legal in state %q", e.Op, e.Current)
}

// NewInvalidStateError creates a state-machine violation error.
func NewInvalidStateError(op, current string) error {
	return &InvalidStateError{Op: op, Current: current}
}

// IsInvalidState reports whether err is a state-machine violation.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// ParseError reports that a specific format parser could not read a
// document. The extraction engine recovers it via fallback synthesis.
type ParseError struct {
	Err    error
	Format string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s parser: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError wraps a parser failure with its format name.
func NewParseError(format string, err error) error {
	return &ParseError{Format: format, Err: err}
}

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrProviderTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
