package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/nimec77/deepseek-agents/internal/shared/logging"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts  int           // Total attempts including the first one (default: 3)
	BaseDelay    time.Duration // Base delay for exponential backoff (default: 500ms)
	MaxDelay     time.Duration // Maximum delay between retries (default: 8s)
	JitterFactor float64       // Additive jitter as a fraction of the un-jittered delay (default: 0.25)

	// Clock drives backoff waits. Nil means the wall clock.
	Clock Clock
	// Rand returns values in [0,1) for jitter. Nil means math/rand.
	Rand func() float64
	// OnRetry is invoked before each backoff wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig returns sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		JitterFactor: 0.25,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultRetryConfig().BaseDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	if c.JitterFactor > 1 {
		c.JitterFactor = 1
	}
	if c.Clock == nil {
		c.Clock = RealClock()
	}
	if c.Rand == nil {
		c.Rand = rand.Float64
	}
	return c
}

// Backoff returns the wait before retry number attempt+1 (attempt is zero-based).
//
// delay = min(MaxDelay, BaseDelay*2^attempt + jitter), jitter in [0, JitterFactor*BaseDelay*2^attempt).
// With JitterFactor <= 1 the sequence never decreases.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	c = c.withDefaults()
	return backoff(attempt, c.BaseDelay, c.MaxDelay, c.JitterFactor, c.Rand())
}

func backoff(attempt int, base, maxDelay time.Duration, jitterFactor, rnd float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := base
	for i := 0; i < attempt && delay < maxDelay; i++ {
		delay *= 2
	}
	if delay >= maxDelay {
		return maxDelay
	}
	if jitterFactor > 0 {
		delay += time.Duration(float64(delay) * jitterFactor * rnd)
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// RetryableFunc is a function that can be retried. attempt starts at 1.
type RetryableFunc[T any] func(ctx context.Context, attempt int) (T, error)

// RetryWithResult executes a function that returns a result with retry logic
func RetryWithResult[T any](ctx context.Context, config RetryConfig, fn RetryableFunc[T]) (T, error) {
	return RetryWithResultAndLog(ctx, config, fn, nil)
}

// RetryWithResultAndLog executes fn until it succeeds, returns a non-transient
// error, the attempt budget is spent, or ctx is cancelled.
func RetryWithResultAndLog[T any](ctx context.Context, config RetryConfig, fn RetryableFunc[T], logger logging.Logger) (T, error) {
	logger = logging.OrNop(logger)
	config = config.withDefaults()

	var zeroValue T
	var lastErr error
	var prevDelay time.Duration

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			logger.Debug("Context cancelled, stopping retries")
			return zeroValue, fmt.Errorf("context cancelled: %w", err)
		}

		if attempt == 1 {
			logger.Debug("Executing (attempt 1/%d)", config.MaxAttempts)
		} else {
			logger.Debug("Retrying (attempt %d/%d)", attempt, config.MaxAttempts)
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info("Retry succeeded after %d attempts", attempt)
			}
			return result, nil
		}

		lastErr = err
		logger.Debug("Attempt %d failed: %v", attempt, err)

		if !IsTransient(err) {
			logger.Debug("Error is not transient, stopping retries")
			return zeroValue, err
		}

		if attempt == config.MaxAttempts {
			logger.Warn("Max attempts (%d) exhausted", config.MaxAttempts)
			break
		}

		delay := backoff(attempt-1, config.BaseDelay, config.MaxDelay, config.JitterFactor, config.Rand())
		if hint := RetryAfterHint(err); hint > delay {
			delay = min(hint, config.MaxDelay)
		}
		// Waits never shrink, even after a Retry-After hint.
		delay = max(delay, prevDelay)
		prevDelay = delay
		if config.OnRetry != nil {
			config.OnRetry(attempt, delay, err)
		}
		logger.Debug("Waiting %v before next retry", delay)

		select {
		case <-config.Clock.After(delay):
		case <-ctx.Done():
			logger.Debug("Context cancelled during backoff")
			return zeroValue, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	return zeroValue, &RetriesExhaustedError{Attempts: config.MaxAttempts, Err: lastErr}
}

// RetriesExhaustedError wraps the last failure once the attempt budget is spent.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("max attempts (%d) exceeded: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}
