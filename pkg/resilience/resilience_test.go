// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	serrors "github.com/jllopis/swarm/pkg/errors"
)

func TestRetrySuccess(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithInitialDelay(time.Millisecond)
	err := config.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithMaxAttempts(2).WithInitialDelay(time.Millisecond)
	err := config.Do(context.Background(), func() error {
		attempts++
		return errors.New("always fails")
	})

	if err == nil {
		t.Errorf("expected error after max attempts")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryNonRecoverable(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithIsRecoverable(func(err error) bool {
		return false
	})
	err := config.Do(context.Background(), func() error {
		attempts++
		return errors.New("non-recoverable error")
	})

	if err == nil {
		t.Errorf("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := DefaultRetryConfig().WithInitialDelay(100 * time.Millisecond)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	attempts := 0
	err := config.Do(ctx, func() error {
		attempts++
		return errors.New("transient error")
	})

	if serrors.CodeOf(err) != serrors.CodeContextLost {
		t.Errorf("expected CONTEXT_LOST, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryWithResult(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithInitialDelay(time.Millisecond)
	result, err := DoWithResult(context.Background(), config, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("transient")
		}
		return "success", nil
	})

	if err != nil {
		t.Errorf("expected success, got error: %v", err)
	}
	if result != "success" {
		t.Errorf("expected 'success', got %v", result)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestFixedRetryConfig(t *testing.T) {
	var delays []time.Duration
	config := FixedRetryConfig(3, 5*time.Millisecond).WithOnRetry(func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	})

	attempts := 0
	malformed := serrors.New(serrors.CodeMalformedOutput, "bad output", nil).WithRecoverable(true)
	err := config.Do(context.Background(), func() error {
		attempts++
		return malformed
	})
	if !errors.Is(err, serrors.ErrMalformedOutput) {
		t.Fatalf("expected last error to surface, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(delays) != 2 || delays[0] != 5*time.Millisecond || delays[1] != 5*time.Millisecond {
		t.Errorf("expected two fixed delays, got %v", delays)
	}

	attempts = 0
	_ = config.Do(context.Background(), func() error {
		attempts++
		return errors.New("plain errors are not retried")
	})
	if attempts != 1 {
		t.Errorf("expected plain error to stop after 1 attempt, got %d", attempts)
	}
}

func TestBackoffGrowth(t *testing.T) {
	rc := RetryConfig{InitialDelay: 10 * time.Millisecond, MaxDelay: 25 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}
	for i, w := range want {
		if got := calculateBackoff(i+1, rc); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}
}

func TestSwarmErrorRecoverable(t *testing.T) {
	se := serrors.New(serrors.CodeTimeout, "timed out", nil).WithRecoverable(true)

	config := DefaultRetryConfig().WithInitialDelay(time.Millisecond)
	attempts := 0
	err := config.Do(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return se
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected retry to succeed")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}

	attempts = 0
	_ = config.Do(context.Background(), func() error {
		attempts++
		return serrors.New(serrors.CodeUnknownAgent, "no such agent", nil)
	})
	if attempts != 1 {
		t.Errorf("expected non-recoverable swarm error to stop after 1 attempt, got %d", attempts)
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), TimeoutConfig{Duration: 20 * time.Millisecond, Operation: "tool"},
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	if !errors.Is(err, serrors.ErrTimeout) || !serrors.IsRecoverable(err) {
		t.Fatalf("expected recoverable TIMEOUT, got %v", err)
	}

	err = WithTimeout(context.Background(), TimeoutConfig{}, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("expected no error without timeout, got %v", err)
	}
}

func TestWithTimeoutResult(t *testing.T) {
	got, err := WithTimeoutResult(context.Background(), TimeoutConfig{Duration: time.Second},
		func(ctx context.Context) (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Fatalf("expected 42, got %d (%v)", got, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = WithTimeoutResult(ctx, TimeoutConfig{Duration: time.Second},
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
	if serrors.CodeOf(err) != serrors.CodeContextLost {
		t.Fatalf("expected CONTEXT_LOST on cancellation, got %v", err)
	}
}

func TestCircuitBreakerClosed(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, Name: "test"})

	if cb.State() != StateClosed {
		t.Errorf("expected initial state Closed")
	}
	for i := 0; i < 5; i++ {
		if err := cb.Call(func() error { return nil }); err != nil {
			t.Errorf("call %d failed: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("expected state to remain Closed after success")
	}
}

func TestCircuitBreakerOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, Name: "test"})

	for i := 0; i < 2; i++ {
		_ = cb.Call(func() error { return errors.New("failure") })
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected state Open after 2 failures")
	}

	err := cb.Call(func() error {
		t.Fatalf("should not execute in open state")
		return nil
	})
	if serrors.CodeOf(err) != serrors.CodeLLMError || serrors.IsRecoverable(err) {
		t.Errorf("expected non-recoverable LLM_ERROR, got %v", err)
	}
}

func TestCircuitBreakerHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: time.Minute})
	now := time.Now()
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errors.New("fail") })
	if cb.State() != StateOpen {
		t.Fatalf("expected circuit to be open")
	}

	now = now.Add(2 * time.Minute)
	_ = cb.Call(func() error { return nil })
	if cb.State() != StateHalfOpen {
		t.Errorf("expected state HalfOpen after cooldown")
	}
	_ = cb.Call(func() error { return nil })
	if cb.State() != StateClosed {
		t.Errorf("expected state Closed after successes in half-open")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	_ = cb.Call(func() error { return errors.New("fail") })
	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("expected state Closed after reset")
	}
	if err := cb.Call(func() error { return nil }); err != nil {
		t.Errorf("call failed after reset: %v", err)
	}
}
