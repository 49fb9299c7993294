package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimec77/deepseek-agents/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetryConfig(clock Clock) RetryConfig {
	return RetryConfig{
		MaxAttempts:  4,
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		JitterFactor: 0.25,
		Clock:        clock,
		Rand:         func() float64 { return 0.5 },
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond, Rand: func() float64 { return 0 }}
	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 500*time.Millisecond, cfg.Backoff(3))
	assert.Equal(t, 500*time.Millisecond, cfg.Backoff(30))
}

func TestBackoffIsMonotonicUnderMaximalJitter(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 50 * time.Millisecond, MaxDelay: 3 * time.Second, JitterFactor: 1, Rand: func() float64 { return 0.999 }}
	low := RetryConfig{BaseDelay: 50 * time.Millisecond, MaxDelay: 3 * time.Second, JitterFactor: 1, Rand: func() float64 { return 0 }}
	for attempt := 0; attempt < 10; attempt++ {
		require.LessOrEqual(t, cfg.Backoff(attempt), low.Backoff(attempt+1), "attempt %d", attempt)
	}
}

func TestRetryWithResultSucceedsAfterTransientFailures(t *testing.T) {
	clock := testutil.NewFakeClock()
	calls := 0

	got, err := RetryWithResult(context.Background(), testRetryConfig(clock), func(ctx context.Context, attempt int) (string, error) {
		calls++
		require.Equal(t, calls, attempt)
		if attempt < 3 {
			return "", NewTransientError(errors.New("503"), "")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{112500 * time.Microsecond, 225 * time.Millisecond}, clock.Waits())
}

func TestRetryWithResultStopsOnPermanentError(t *testing.T) {
	clock := testutil.NewFakeClock()
	calls := 0
	_, err := RetryWithResult(context.Background(), testRetryConfig(clock), func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, NewPermanentError(errors.New("400"), "bad request")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.Waits())
}

func TestRetryWithResultExhaustsBudget(t *testing.T) {
	clock := testutil.NewFakeClock()
	calls := 0
	_, err := RetryWithResult(context.Background(), testRetryConfig(clock), func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("429"), "")
	})

	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.Equal(t, 4, calls)
	assert.Len(t, clock.Waits(), 3)
}

func TestRetryWithResultHonoursRetryAfterHint(t *testing.T) {
	clock := testutil.NewFakeClock()
	_, _ = RetryWithResult(context.Background(), testRetryConfig(clock), func(ctx context.Context, attempt int) (int, error) {
		if attempt == 1 {
			return 0, &TransientError{Err: errors.New("429"), RetryAfter: 700 * time.Millisecond}
		}
		return 1, nil
	})
	assert.Equal(t, []time.Duration{700 * time.Millisecond}, clock.Waits())
}

func TestRetryWithResultKeepsDelaysMonotonicAfterHint(t *testing.T) {
	clock := testutil.NewFakeClock()
	_, err := RetryWithResult(context.Background(), testRetryConfig(clock), func(ctx context.Context, attempt int) (int, error) {
		switch attempt {
		case 1:
			return 0, &TransientError{Err: errors.New("429"), RetryAfter: 700 * time.Millisecond}
		case 2:
			return 0, NewTransientError(errors.New("503"), "")
		}
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{700 * time.Millisecond, 700 * time.Millisecond}, clock.Waits())
}

func TestRetryWithResultCancelledDuringBackoff(t *testing.T) {
	clock := testutil.NewFakeClock()
	clock.Block = true
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-clock.Waiting()
		cancel()
	}()

	start := time.Now()
	_, err := RetryWithResult(ctx, testRetryConfig(clock), func(ctx context.Context, attempt int) (int, error) {
		return 0, NewTransientError(errors.New("503"), "")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, KindCancelled, KindOf(err))
}
