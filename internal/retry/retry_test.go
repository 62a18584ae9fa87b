package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    1 * time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterFraction:    0,
	}
}

func TestDo_Success(t *testing.T) {
	attempts := 0

	err := Do(context.Background(), DefaultPolicy(), func() error {
		attempts++
		return nil
	}, func(err error) bool {
		return true
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, func(err error) bool {
		return true
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_NonRetryableError(t *testing.T) {
	testErr := errors.New("non-retryable")
	attempts := 0

	err := Do(context.Background(), DefaultPolicy(), func() error {
		attempts++
		return testErr
	}, func(err error) bool {
		return false
	})

	if err != testErr {
		t.Errorf("expected error %v, got %v", testErr, err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_MaxAttemptsExceeded(t *testing.T) {
	testErr := errors.New("persistent error")
	attempts := 0

	err := Do(context.Background(), fastPolicy(3), func() error {
		attempts++
		return testErr
	}, func(err error) bool {
		return true
	})

	if err != testErr {
		t.Errorf("expected error %v, got %v", testErr, err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Do(ctx, Policy{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 1.0,
	}, func() error {
		attempts++
		cancel()
		return errors.New("fail")
	}, func(err error) bool {
		return true
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), fastPolicy(3), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "done", nil
	}, func(err error) bool {
		return true
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "done" {
		t.Errorf("expected result %q, got %q", "done", result)
	}
}

func TestSingleRetryPolicy(t *testing.T) {
	p := SingleRetryPolicy(time.Millisecond)
	if p.MaxAttempts != 2 {
		t.Errorf("expected 2 attempts, got %d", p.MaxAttempts)
	}

	attempts := 0
	err := Do(context.Background(), p, func() error {
		attempts++
		return errors.New("fail")
	}, func(err error) bool {
		return true
	})

	if err == nil {
		t.Error("expected error after retries exhausted")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestBackoff(t *testing.T) {
	p := Policy{
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{10, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(tt.attempt, p); got != tt.expected {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}
