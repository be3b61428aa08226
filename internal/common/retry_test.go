package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perabook/perabook/internal/service"
)

func fastOpts() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithRetrySucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &RetryableError{Err: errors.New("transient"), Retryable: true}
		}
		return nil
	}, fastOpts())

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return permanent
	}, fastOpts())

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts, "non-retryable errors must not be retried")
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return &RetryableError{Err: ErrRateLimit, Retryable: true}
	}, fastOpts())

	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := WithRetry(ctx, func() error {
		attempts++
		cancel()
		return &RetryableError{Err: errors.New("transient"), Retryable: true}
	}, fastOpts())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(ErrProviderTimeout))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: true}))
	assert.False(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: false}))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(ErrNotFound))
}

func TestErrorTypes(t *testing.T) {
	valErr := NewValidationError("amount", "must be non-zero")
	var ve *ValidationError
	require.ErrorAs(t, valErr, &ve)
	assert.Equal(t, "amount", ve.Field)
	assert.Contains(t, valErr.Error(), "amount")

	stateErr := NewInvalidStateError("approve", "processing")
	assert.True(t, IsInvalidState(stateErr))
	assert.False(t, IsInvalidState(valErr))
	assert.Contains(t, stateErr.Error(), "processing")

	parseErr := NewParseError("csv", errors.New("no data rows"))
	var pe *ParseError
	require.ErrorAs(t, parseErr, &pe)
	assert.Equal(t, "csv", pe.Format)
	assert.Contains(t, parseErr.Error(), "no data rows")

	failures := &ValidationFailures{Failures: []FieldFailure{
		{RecordID: "c-1", Field: "amount", Reason: "must be non-zero"},
		{RecordID: "c-2", Field: "id", Reason: "no such candidate"},
	}}
	assert.Contains(t, failures.Error(), "c-1.amount")
	assert.Contains(t, failures.Error(), "c-2.id")
}
