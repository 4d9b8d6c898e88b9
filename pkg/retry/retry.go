// Package retry runs startup connectivity checks with exponential backoff.
// Request paths never retry; they degrade or fail fast instead.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config controls Do.
type Config struct {
	// Attempts is the total number of calls, including the first one.
	Attempts int
	// BaseDelay is the wait after the first failure; it doubles each attempt.
	BaseDelay time.Duration
	// Jitter is the +/- fraction applied to each wait, 0 disables it.
	Jitter float64
	// ShouldRetry reports whether err is transient. Nil retries everything.
	ShouldRetry func(error) bool
	// OnRetry is invoked before sleeping. attempt is 1-based.
	OnRetry func(attempt int, wait time.Duration, err error)
}

func (c Config) attempts() int {
	return max(c.Attempts, 1)
}

// BackOff returns the wait policy for cfg: base, 2*base, 4*base ... with
// the configured jitter and no upper cap within the attempt budget.
func (c Config) BackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.BaseDelay
	b.RandomizationFactor = c.Jitter
	b.Multiplier = 2
	b.MaxInterval = c.BaseDelay << c.attempts()
	b.Reset()
	return b
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is done.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	attempts := cfg.attempts()

	var (
		calls   int
		lastErr error
	)
	operation := func() (struct{}, error) {
		calls++
		lastErr = fn(ctx)
		if lastErr != nil && cfg.ShouldRetry != nil && !cfg.ShouldRetry(lastErr) {
			return struct{}{}, backoff.Permanent(lastErr)
		}
		return struct{}{}, lastErr
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(cfg.BackOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if cfg.OnRetry != nil {
				cfg.OnRetry(calls, wait, err)
			}
		}),
	)
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	switch {
	case errors.As(err, &permanent):
		return permanent.Unwrap()
	case ctx.Err() != nil && lastErr != nil:
		return fmt.Errorf("retry canceled: %w: %w", ctx.Err(), lastErr)
	case calls >= attempts:
		return fmt.Errorf("after %d attempts: %w", attempts, err)
	default:
		return err
	}
}
