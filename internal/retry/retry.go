// Package retry implements a bounded exponential-backoff policy on top of
// cenkalti/backoff.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds how often and how long an operation is retried.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay after the first failure
	MaxDelay    time.Duration // cap for a single delay; 0 means uncapped

	// Retryable decides whether err is worth another attempt.
	// A nil Retryable retries every error. Errors wrapped with Permanent
	// are never retried.
	Retryable func(err error) bool

	// timer is swapped in tests.
	timer backoff.Timer
}

// Default is three attempts, one second apart then doubled.
func Default() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 8 * time.Second}
}

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error { return backoff.Permanent(err) }

// Delay returns the wait after the given zero-based failed attempt:
// base * 2^attempt, capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	b := p.backOff()
	var d time.Duration
	for i := 0; i <= attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Duration(math.MaxInt64)
	}
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.BaseDelay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(maxDelay),
		backoff.WithMaxElapsedTime(0),
	)
}

// Do runs fn until it succeeds, returns a non-retryable error, attempts are
// exhausted or ctx is done. The last error of fn is returned unchanged.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(attempts-1)), ctx)

	var last error
	op := func() error {
		err := fn(ctx)
		last = err
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.RetryNotifyWithTimer(op, b, nil, p.timer)
	if err != nil && last != nil && ctx.Err() != nil {
		return unwrapPermanent(last)
	}
	return err
}

func unwrapPermanent(err error) error {
	if pe, ok := err.(*backoff.PermanentError); ok {
		return pe.Err
	}
	return err
}
