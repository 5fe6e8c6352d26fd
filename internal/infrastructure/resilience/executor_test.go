package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesTransientFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts: 3,
		RetryBaseBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:  2 * time.Millisecond,
		BreakerEnabled:   false,
	})

	attempts := 0
	errTransient := errors.New("transient")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTransient),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts: 3,
		RetryBaseBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:  2 * time.Millisecond,
		BreakerEnabled:   false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterConsecutiveFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryBaseBackoff:        1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		BreakerEnabled:          true,
		BreakerFailureThreshold: 2,
		BreakerResetTimeout:     50 * time.Millisecond,
	})

	errTransient := errors.New("transient")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTransient
		}, classifier)
		if !errors.Is(err, errTransient) {
			t.Fatalf("expected transient error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestExecutePermitsSingleTrialAfterResetTimeout(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryBaseBackoff:        1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		BreakerEnabled:          true,
		BreakerFailureThreshold: 1,
		BreakerResetTimeout:     20 * time.Millisecond,
	})

	errTransient := errors.New("transient")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	if err := exec.Execute(context.Background(), "op", func(context.Context) error {
		return errTransient
	}, classifier); !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}

	if err := exec.Execute(context.Background(), "op", func(context.Context) error {
		return nil
	}, classifier); !IsCircuitOpen(err) {
		t.Fatalf("expected circuit open before reset timeout, got %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	calls := 0
	if err := exec.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	}, classifier); err != nil {
		t.Fatalf("expected trial call to succeed, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one trial call, got %d", calls)
	}

	// Trial success closed the circuit again.
	if err := exec.Execute(context.Background(), "op", func(context.Context) error {
		return nil
	}, classifier); err != nil {
		t.Fatalf("expected closed circuit after trial success, got %v", err)
	}
}

func TestExecuteCallerCancelDoesNotCountTowardBreaker(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryBaseBackoff:        1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		BreakerEnabled:          true,
		BreakerFailureThreshold: 1,
		BreakerResetTimeout:     time.Minute,
	})

	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}

	ctx, cancel := context.WithCancel(context.Background())
	errTransient := errors.New("transient")
	err := exec.Execute(ctx, "op", func(context.Context) error {
		cancel()
		return errTransient
	}, classifier)
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}

	// With a threshold of 1 a recorded failure would have opened the
	// circuit; the aborted call must leave it closed.
	calls := 0
	if err := exec.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	}, classifier); err != nil {
		t.Fatalf("expected closed circuit after caller abort, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the follow-up call to run, got %d calls", calls)
	}
}

func TestExecuteDoesNotRetryAfterContextCancel(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts: 5,
		RetryBaseBackoff: 50 * time.Millisecond,
		RetryMaxBackoff:  50 * time.Millisecond,
		BreakerEnabled:   false,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errTransient := errors.New("transient")
	attempts := 0
	err := exec.Execute(ctx, "op", func(context.Context) error {
		attempts++
		cancel()
		return errTransient
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt after cancel, got %d", attempts)
	}
}
