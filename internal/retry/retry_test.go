package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"psync/internal/retry"
)

var errConflict = errors.New("conflict")

func conflictOnly(err error) bool { return errors.Is(err, errConflict) }

func TestPolicyRetriesUntilSuccess(t *testing.T) {
	clock := retry.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	p := retry.Policy{MaxAttempts: 5, Backoff: retry.Linear(time.Second), Retryable: conflictOnly, Clock: clock}

	calls := 0
	attempts, err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls <= 2 {
			return errConflict
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	sleeps := clock.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Errorf("sleeps = %v, want [1s 2s]", sleeps)
	}
}

func TestPolicyStopsOnNonRetryable(t *testing.T) {
	clock := retry.NewFakeClock(time.Now())
	p := retry.Policy{MaxAttempts: 5, Backoff: retry.Linear(time.Second), Retryable: conflictOnly, Clock: clock}

	boom := errors.New("boom")
	attempts, err := p.Do(context.Background(), func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if len(clock.Sleeps()) != 0 {
		t.Errorf("unexpected sleeps %v", clock.Sleeps())
	}
}

func TestPolicyExhausted(t *testing.T) {
	clock := retry.NewFakeClock(time.Now())
	p := retry.Policy{MaxAttempts: 3, Backoff: retry.Linear(time.Second), Retryable: conflictOnly, Clock: clock}

	attempts, err := p.Do(context.Background(), func(context.Context) error { return errConflict })
	if !errors.Is(err, retry.ErrExhausted) || !errors.Is(err, errConflict) {
		t.Fatalf("err = %v, want exhausted wrapping conflict", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if got := len(clock.Sleeps()); got != 2 {
		t.Errorf("sleeps = %d, want 2", got)
	}
}

func TestPolicyHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := retry.Policy{MaxAttempts: 3}
	attempts, err := p.Do(ctx, func(context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) || attempts != 0 {
		t.Fatalf("Do() = (%d, %v), want (0, context.Canceled)", attempts, err)
	}
}
