// Package resilience provides the fault-tolerance building blocks shared by
// the messaging and voice paths: bounded retries with exponential backoff,
// per-dependency circuit breakers, and ordered fallback chains.
//
// The pieces are deliberately domain-agnostic. A [Retryer] re-runs any
// operation, a [Breaker] guards any dependency, and a [Chain] fails over
// across any set of interchangeable values. Callers decide what gets wrapped.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Default retry schedule: three tries with waits of 1s then 2s in between.
const (
	defaultRetryAttempts = 3
	defaultRetryBase     = 1 * time.Second
	defaultRetryCap      = 3 * time.Second
)

// RetryConfig configures a [Retryer]. Zero values fall back to the defaults
// documented on each field.
type RetryConfig struct {
	// Attempts is the maximum number of tries, including the first.
	// Defaults to 3.
	Attempts int
	// BaseDelay is the wait after the first failed attempt. Every further
	// failure doubles it. Defaults to 1s.
	BaseDelay time.Duration
	// MaxDelay caps the wait between attempts. Defaults to 3s.
	MaxDelay time.Duration
	// OnRetry, when set, is called after each failed attempt that will be
	// retried, with the 1-based attempt number and its error.
	OnRetry func(attempt int, err error)
}

// Retryer re-runs failing operations with exponential backoff. The wait after
// attempt n is min(BaseDelay*2^(n-1), MaxDelay); with the defaults that is 1s
// after the first failure and 2s after the second. The retryer knows nothing
// about what it runs, so callers must only hand it operations that are safe
// to repeat.
type Retryer struct {
	attempts int
	base     time.Duration
	cap      time.Duration
	onRetry  func(int, error)

	// sleep waits for d or until ctx is done. Swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryer creates a [Retryer] from cfg, applying defaults for zero fields.
func NewRetryer(cfg RetryConfig) *Retryer {
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultRetryAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultRetryBase
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultRetryCap
	}
	return &Retryer{
		attempts: cfg.Attempts,
		base:     cfg.BaseDelay,
		cap:      cfg.MaxDelay,
		onRetry:  cfg.OnRetry,
		sleep:    sleepCtx,
	}
}

// Delay reports the wait scheduled after the given failed attempt (1-based).
func (r *Retryer) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := uint(attempt - 1)
	if shift > 31 {
		return r.cap
	}
	d := r.base << shift
	if d <= 0 || d > r.cap {
		return r.cap
	}
	return d
}

// Do runs op until it succeeds, the attempt budget is spent, or ctx is
// cancelled between attempts. On exhaustion the returned error wraps the
// last attempt's error. The name only labels log lines.
func (r *Retryer) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				slog.Info("retry succeeded",
					"op", name,
					"attempt", attempt)
			}
			return nil
		}
		if attempt == r.attempts {
			break
		}
		delay := r.Delay(attempt)
		slog.Warn("retrying after failure",
			"op", name,
			"attempt", attempt,
			"max_attempts", r.attempts,
			"delay", delay,
			"error", lastErr)
		if r.onRetry != nil {
			r.onRetry(attempt, lastErr)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("resilience: %s failed after %d attempts: %w", name, r.attempts, lastErr)
}

// RetryWithResult is the value-returning form of [Retryer.Do]. It is a
// package-level function because Go does not support method-level type
// parameters.
func RetryWithResult[R any](ctx context.Context, r *Retryer, name string, op func(ctx context.Context) (R, error)) (R, error) {
	var result R
	err := r.Do(ctx, name, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
