// Package retry provides a small retry-with-backoff helper shared by the config
// repository clone and the Content-Resolver HTTP fetch.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds retry configuration. It mirrors the daemon's single `-r/--retry`
// flag (MaxAttempts) with fixed backoff parameters tuned for short-lived network
// calls (git ls-remote/clone, HTTP fetch) rather than long-running jobs.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to the backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the backoff duration.
	MaxBackoff time.Duration
}

// DefaultConfig returns sensible retry defaults. MaxAttempts matches the daemon's
// `-r/--retry` default of 3.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		BackoffBase:       500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        10 * time.Second,
	}
}

// WithAttempts returns a copy of cfg with MaxAttempts overridden. Used to apply the
// daemon's `-r/--retry` flag value to the default backoff shape.
func (cfg Config) WithAttempts(attempts int) Config {
	cfg.MaxAttempts = attempts
	return cfg
}

// NonRetryableError wraps an error to signal that Do must not retry it.
type NonRetryableError struct {
	err error
}

// NonRetryable marks err as permanent; Do returns it immediately.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{err: err}
}

func (e *NonRetryableError) Error() string { return e.err.Error() }
func (e *NonRetryableError) Unwrap() error { return e.err }

// IsNonRetryable reports whether err was produced by NonRetryable.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Do runs fn, retrying on transient failures according to cfg until it succeeds, fn
// returns a NonRetryable error, ctx is cancelled, or attempts are exhausted.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BackoffBase
	b.Multiplier = cfg.BackoffMultiplier
	b.MaxInterval = cfg.MaxBackoff
	b.MaxElapsedTime = 0 // bounded by MaxAttempts instead of wall-clock

	var lastErr error
	attempts := 0
	for {
		attempts++
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if IsNonRetryable(lastErr) {
			return lastErr
		}
		if attempts >= cfg.MaxAttempts {
			return lastErr
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return lastErr
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
