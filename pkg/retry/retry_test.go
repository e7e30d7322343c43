package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOpts(extra ...Option) []Option {
	opts := []Option{
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithJitter(0),
	}
	return append(opts, extra...)
}

func TestDo_RetryableSucceedsEventually(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	cause := errors.New("bad request")
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return Permanent(cause)
	}, fastOpts()...)

	assert.Equal(t, cause, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_UnclassifiedErrorNotRetried(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("plain")
	}, fastOpts()...)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_ExhaustedAttemptsReturnsCause(t *testing.T) {
	cause := errors.New("still failing")
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return Retryable(cause)
	}, fastOpts()...)

	assert.Equal(t, cause, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Do(ctx, func(context.Context) error {
		attempts++
		cancel()
		return Retryable(errors.New("transient"))
	}, fastOpts(WithInitialDelay(time.Minute))...)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoWithData(t *testing.T) {
	attempts := 0
	value, err := DoWithData(context.Background(), func(context.Context) (int, error) {
		attempts++
		if attempts < 2 {
			return 0, Retryable(errors.New("transient"))
		}
		return 42, nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestIsRetryableAndIsPermanent(t *testing.T) {
	assert.True(t, IsRetryable(Retryable(errors.New("x"))))
	assert.False(t, IsRetryable(errors.New("x")))
	assert.True(t, IsPermanent(Permanent(errors.New("x"))))
	assert.False(t, IsPermanent(Retryable(errors.New("x"))))
	assert.NoError(t, Retryable(nil))
	assert.NoError(t, Permanent(nil))
}
