package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	cfg := DefaultConfig()
	cb := New(cfg)

	if cb.state != StateClosed {
		t.Errorf("expected state Closed, got %s", cb.state)
	}
	if cb.failures != 0 {
		t.Errorf("expected 0 failures, got %d", cb.failures)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxFailures != 5 {
		t.Errorf("expected MaxFailures 5, got %d", cfg.MaxFailures)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("expected Timeout 60s, got %v", cfg.Timeout)
	}
	if cfg.MaxHalfOpenRequests != 1 {
		t.Errorf("expected MaxHalfOpenRequests 1, got %d", cfg.MaxHalfOpenRequests)
	}
}

func TestExecute_Success(t *testing.T) {
	cb := New(DefaultConfig())

	err := cb.Execute(func() error {
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected state Closed, got %s", cb.State())
	}
}

func TestExecute_Failure(t *testing.T) {
	cb := New(DefaultConfig())

	testErr := errors.New("test error")
	err := cb.Execute(func() error {
		return testErr
	})

	if err != testErr {
		t.Errorf("expected error %v, got %v", testErr, err)
	}
	if cb.Failures() != 1 {
		t.Errorf("expected 1 failure, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cfg := Config{
		MaxFailures:         3,
		Timeout:             1 * time.Second,
		MaxHalfOpenRequests: 1,
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}
	cb := New(cfg)

	testErr := errors.New("test error")
	for i := 0; i < 3; i++ {
		cb.Execute(func() error {
			return testErr
		})
	}

	if cb.State() != StateOpen {
		t.Errorf("expected state Open after max failures, got %s", cb.State())
	}

	err := cb.Execute(func() error {
		return nil
	})
	if err != ErrOpenState {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cfg := Config{
		MaxFailures:         2,
		Timeout:             100 * time.Millisecond,
		MaxHalfOpenRequests: 1,
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}
	cb := New(cfg)

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		cb.Execute(func() error {
			return testErr
		})
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected state Open, got %s", cb.State())
	}

	time.Sleep(150 * time.Millisecond)

	cb.Execute(func() error {
		return nil
	})

	if cb.State() != StateClosed {
		t.Errorf("expected state Closed after successful half-open request, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailure(t *testing.T) {
	cfg := Config{
		MaxFailures:         2,
		Timeout:             50 * time.Millisecond,
		MaxHalfOpenRequests: 1,
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}
	cb := New(cfg)

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		cb.Execute(func() error {
			return testErr
		})
	}

	time.Sleep(100 * time.Millisecond)

	cb.Execute(func() error {
		return testErr
	})

	if cb.State() != StateOpen {
		t.Errorf("expected state Open after half-open failure, got %s", cb.State())
	}
}

func TestCircuitBreaker_TooManyHalfOpenRequests(t *testing.T) {
	cb := New(DefaultConfig())

	cb.mu.Lock()
	cb.state = StateHalfOpen
	cb.halfOpenRequests = 1
	cb.mu.Unlock()

	if err := cb.beforeRequest(); err != ErrTooManyRequests {
		t.Errorf("expected ErrTooManyRequests, got %v", err)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cfg := DefaultConfig()
	cb := New(cfg)

	testErr := errors.New("test error")
	for i := 0; i < int(cfg.MaxFailures); i++ {
		cb.Execute(func() error {
			return testErr
		})
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected state Open, got %s", cb.State())
	}

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("expected state Closed after reset, got %s", cb.State())
	}
	if cb.Failures() != 0 {
		t.Errorf("expected 0 failures after reset, got %d", cb.Failures())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(999), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State.String() = %v, want %v", got, tt.expected)
		}
	}
}

func TestRegistry_IsolatesKeys(t *testing.T) {
	cfg := Config{
		MaxFailures:         1,
		Timeout:             time.Second,
		MaxHalfOpenRequests: 1,
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}
	reg := NewRegistry(cfg)

	testErr := errors.New("test error")
	reg.Get("api.myanimelist.net").Execute(func() error {
		return testErr
	})

	if reg.Get("api.myanimelist.net").State() != StateOpen {
		t.Error("expected the failing host's breaker to open")
	}
	if reg.Get("api.themoviedb.org").State() != StateClosed {
		t.Error("a failure on one host must not trip another host's breaker")
	}
}

func TestRegistry_ReturnsSameBreaker(t *testing.T) {
	reg := NewRegistry(DefaultConfig())
	if reg.Get("host") != reg.Get("host") {
		t.Error("expected the same breaker instance for the same key")
	}
}
