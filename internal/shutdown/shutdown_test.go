package shutdown

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	timeout := 5 * time.Second
	h := New(timeout)

	if h.timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, h.timeout)
	}
	if h.isShuttingDown {
		t.Error("expected isShuttingDown to be false")
	}
	if len(h.shutdownFuncs) != 0 {
		t.Errorf("expected 0 shutdown functions, got %d", len(h.shutdownFuncs))
	}
}

func TestRegister(t *testing.T) {
	h := New(5 * time.Second)

	h.Register(func(ctx context.Context) error {
		return nil
	})
	h.Register(func(ctx context.Context) error {
		return nil
	})

	if len(h.shutdownFuncs) != 2 {
		t.Errorf("expected 2 shutdown functions, got %d", len(h.shutdownFuncs))
	}
}

func TestShutdown_Success(t *testing.T) {
	h := New(5 * time.Second)

	var counter int32
	h.Register(func(ctx context.Context) error {
		atomic.AddInt32(&counter, 1)
		return nil
	})
	h.Register(func(ctx context.Context) error {
		atomic.AddInt32(&counter, 1)
		return nil
	})

	if err := h.Shutdown(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if atomic.LoadInt32(&counter) != 2 {
		t.Errorf("expected counter to be 2, got %d", counter)
	}
	if !h.IsShuttingDown() {
		t.Error("expected IsShuttingDown to be true")
	}
}

func TestShutdown_ReverseOrder(t *testing.T) {
	h := New(5 * time.Second)

	var order []int
	for i := 1; i <= 3; i++ {
		val := i
		h.Register(func(ctx context.Context) error {
			order = append(order, val)
			return nil
		})
	}

	if err := h.Shutdown(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	expected := []int{3, 2, 1}
	if len(order) != len(expected) {
		t.Fatalf("expected %d items, got %d", len(expected), len(order))
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("order[%d] = %d, want %d", i, order[i], expected[i])
		}
	}
}

func TestShutdown_WithError(t *testing.T) {
	h := New(5 * time.Second)

	testErr := errors.New("shutdown error")
	h.Register(func(ctx context.Context) error {
		return testErr
	})

	if err := h.Shutdown(); err != testErr {
		t.Errorf("expected error %v, got %v", testErr, err)
	}
}

func TestShutdown_FirstErrorWins(t *testing.T) {
	h := New(5 * time.Second)

	firstErr := errors.New("first")
	secondErr := errors.New("second")

	// Registered first, so it runs last
	h.Register(func(ctx context.Context) error {
		return secondErr
	})
	h.Register(func(ctx context.Context) error {
		return firstErr
	})

	if err := h.Shutdown(); err != firstErr {
		t.Errorf("expected error %v, got %v", firstErr, err)
	}
}

func TestShutdown_Timeout(t *testing.T) {
	h := New(100 * time.Millisecond)

	h.Register(func(ctx context.Context) error {
		time.Sleep(500 * time.Millisecond)
		return nil
	})

	if err := h.Shutdown(); err != context.DeadlineExceeded {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	h := New(5 * time.Second)

	var counter int32
	h.Register(func(ctx context.Context) error {
		atomic.AddInt32(&counter, 1)
		return nil
	})

	if err := h.Shutdown(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := h.Shutdown(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if atomic.LoadInt32(&counter) != 1 {
		t.Errorf("expected counter to be 1, got %d", counter)
	}
}

func TestShutdownChan(t *testing.T) {
	h := New(5 * time.Second)

	shutdownChan := h.ShutdownChan()

	select {
	case <-shutdownChan:
		t.Error("expected shutdown channel to be open")
	default:
	}

	h.Shutdown()

	select {
	case <-shutdownChan:
	case <-time.After(100 * time.Millisecond):
		t.Error("expected shutdown channel to be closed")
	}
}

func TestTriggerShutdown(t *testing.T) {
	h := New(5 * time.Second)

	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	h.TriggerShutdown()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Error("expected Wait to return after TriggerShutdown")
	}
}
