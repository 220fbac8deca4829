package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
)

// RetryError is returned once every attempt of an operation has failed.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// Retrier runs an operation with a per-attempt timeout and exponential backoff.
// It knows nothing about items or sync types.
type Retrier struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Timeout bounds each attempt. Zero means no per-attempt deadline.
	Timeout time.Duration
	// BaseDelay is the delay after the first failed attempt; it doubles each time.
	BaseDelay time.Duration
	Logger    *slog.Logger

	// sleep waits for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// RetrierConfig holds the retry policy.
type RetrierConfig struct {
	MaxRetries *int          // Optional: defaults to 3; zero disables retries
	Timeout    time.Duration // Optional: per-attempt deadline
	BaseDelay  time.Duration // Optional: defaults to 1s
	Logger     *slog.Logger
}

// NewRetrier creates a retrier with defaults applied.
func NewRetrier(cfg RetrierConfig) *Retrier {
	maxRetries := defaultMaxRetries
	if cfg.MaxRetries != nil && *cfg.MaxRetries >= 0 {
		maxRetries = *cfg.MaxRetries
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{
		MaxRetries: maxRetries,
		Timeout:    cfg.Timeout,
		BaseDelay:  baseDelay,
		Logger:     logger,
		sleep:      sleepContext,
	}
}

// Delay returns the wait after failed attempt n (0-indexed): 2^n * BaseDelay.
func (r *Retrier) Delay(n int) time.Duration {
	return r.BaseDelay << uint(n)
}

// Do runs op until it succeeds, returns a permanent error, or has been
// attempted MaxRetries+1 times.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Retry(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Retry is the value-returning form of Retrier.Do.
func Retry[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := r.MaxRetries + 1
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := runAttempt(ctx, r.Timeout, op)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if domain.IsPermanent(err) {
			return zero, &RetryError{Attempts: attempt + 1, Err: err}
		}
		if ctx.Err() != nil {
			return zero, &RetryError{Attempts: attempt + 1, Err: err}
		}
		if attempt == attempts-1 {
			break
		}

		delay := r.Delay(attempt)
		logger.Debug("operation failed, retrying",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if err := sleep(ctx, delay); err != nil {
			return zero, &RetryError{Attempts: attempt + 1, Err: lastErr}
		}
	}
	return zero, &RetryError{Attempts: attempts, Err: lastErr}
}

type attemptResult[T any] struct {
	v   T
	err error
}

// runAttempt runs op once, racing it against the per-attempt deadline.
// A timed-out attempt returns context.DeadlineExceeded even if op ignores ctx.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptResult[T], 1)
	go func() {
		v, err := op(attemptCtx)
		done <- attemptResult[T]{v: v, err: err}
	}()

	select {
	case res := <-done:
		return res.v, res.err
	case <-attemptCtx.Done():
		var zero T
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("attempt timed out after %s: %w", timeout, context.DeadlineExceeded)
		}
		return zero, attemptCtx.Err()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
