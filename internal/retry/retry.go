// Package retry runs an operation under a bounded retry policy with an
// injectable clock so tests never sleep.
package retry

import (
	"context"
	"errors"
	"time"
)

// Clock provides the current time and a cancellable sleep.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for d or until ctx is done.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff returns the wait before retrying after the given failed attempt (1-based).
type Backoff func(attempt int) time.Duration

// Linear waits attempt*step after each failed attempt.
func Linear(step time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// ErrExhausted is wrapped around the last error when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds how an operation is retried.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
	// Retryable decides whether an error deserves another attempt. Nil retries nothing.
	Retryable func(error) bool
	Clock     Clock
}

// Do runs fn until it succeeds, returns a non-retryable error, or MaxAttempts
// is reached. It returns the number of attempts made.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	limit := p.MaxAttempts
	if limit < 1 {
		limit = 1
	}
	clock := p.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	var err error
	for attempt := 1; attempt <= limit; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return attempt - 1, cerr
		}
		err = fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return attempt, err
		}
		if attempt == limit {
			break
		}
		if p.Backoff != nil {
			if serr := clock.Sleep(ctx, p.Backoff(attempt)); serr != nil {
				return attempt, serr
			}
		}
	}
	return limit, &ExhaustedError{Attempts: limit, Err: err}
}

// ExhaustedError reports the final error after MaxAttempts failures.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return "retry: " + ErrExhausted.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the sentinel and the last error.
func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Err}
}
