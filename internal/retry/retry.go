package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy describes how many attempts an operation gets and how long to
// back off between them.
type Policy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	JitterFraction    float64
}

// DefaultPolicy returns sensible defaults for transient failures
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// SingleRetryPolicy retries exactly once after a fixed delay
func SingleRetryPolicy(delay time.Duration) Policy {
	return Policy{
		MaxAttempts:       2,
		InitialBackoff:    delay,
		MaxBackoff:        delay,
		BackoffMultiplier: 1.0,
	}
}

// IsRetryable decides whether an error should trigger another attempt
type IsRetryable func(error) bool

// Do executes fn under the policy, sleeping between attempts
func Do(ctx context.Context, p Policy, fn func() error, isRetryable IsRetryable) error {
	_, err := DoWithResult(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	}, isRetryable)
	return err
}

// DoWithResult executes fn under the policy and returns its result
func DoWithResult[T any](ctx context.Context, p Policy, fn func() (T, error), isRetryable IsRetryable) (T, error) {
	var result T
	var err error
	backoff := p.InitialBackoff

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}

		if !isRetryable(err) {
			return result, err
		}

		// No sleep after the last attempt
		if attempt == p.MaxAttempts {
			return result, err
		}

		sleep := addJitter(backoff, p.JitterFraction)

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(sleep):
		}

		backoff = time.Duration(float64(backoff) * p.BackoffMultiplier)
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}

	return result, err
}

// Backoff computes the backoff duration for a given attempt number
func Backoff(attempt int, p Policy) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	duration := time.Duration(backoff)

	if duration > p.MaxBackoff {
		duration = p.MaxBackoff
	}

	return addJitter(duration, p.JitterFraction)
}

// addJitter spreads sleeps out to avoid synchronized retries
func addJitter(backoff time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return backoff
	}

	jitter := float64(backoff) * jitterFraction
	randomJitter := (rand.Float64()*2 - 1) * jitter

	result := float64(backoff) + randomJitter
	if result < 0 {
		result = 0
	}

	return time.Duration(result)
}
