// Package retry provides the bounded-retry-with-backoff combinator shared by
// the request client and the transfer engine.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
)

// DelayFunc returns how long to wait after the given failed attempt (1-based).
type DelayFunc func(attempt int) time.Duration

// Policy bounds how an operation is retried.
type Policy struct {
	// MaxAttempts is the hard ceiling on attempts. Values below 1 mean 1.
	MaxAttempts int
	// Delay computes the pause between attempts. Nil means no pause.
	Delay DelayFunc
	// ShouldRotate is asked after every failure with the number of
	// consecutive failures since the last rotation. Nil never rotates.
	ShouldRotate func(consecutive int) bool
	// Retryable reports whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ExhaustedError is returned when every allowed attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap exposes both the sentinel and the last underlying failure.
func (e *ExhaustedError) Unwrap() []error {
	return []error{errors.ErrAttemptsExhausted, e.Last}
}

// Linear grows the delay additively: base + increment*(attempt-1).
func Linear(base, increment time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base + increment*time.Duration(attempt-1)
	}
}

// Exponential doubles the delay per attempt starting at base, capped at limit.
func Exponential(base, limit time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt && d < limit; i++ {
			d *= 2
		}
		if limit > 0 && d > limit {
			d = limit
		}
		return d
	}
}

// EveryN rotates after n consecutive failures.
func EveryN(n int) func(int) bool {
	return func(consecutive int) bool {
		return n > 0 && consecutive >= n
	}
}

// Do runs op until it succeeds, returns a non-retryable error, ctx is done,
// or MaxAttempts is reached. onRotate, when set, runs whenever the policy asks
// for a rotation and resets the consecutive failure count.
// It returns the number of attempts made.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error, onRotate func()) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var last error
	consecutive := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		last = op(ctx, attempt)
		if last == nil {
			return attempt, nil
		}
		if p.Retryable != nil && !p.Retryable(last) {
			return attempt, last
		}
		if attempt == maxAttempts {
			break
		}

		consecutive++
		if p.ShouldRotate != nil && p.ShouldRotate(consecutive) {
			if onRotate != nil {
				onRotate()
			}
			consecutive = 0
		}

		if p.Delay != nil {
			if err := sleep(ctx, p.Delay(attempt)); err != nil {
				return attempt, err
			}
		}
	}
	return maxAttempts, &ExhaustedError{Attempts: maxAttempts, Last: last}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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
