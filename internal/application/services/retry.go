package services

import (
	"context"
	"time"
)

// RetryConfig groups retry-with-backoff parameters.
type RetryConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// ShouldRetry gates each retry on the error just observed. Nil retries
	// everything.
	ShouldRetry func(error) bool
}

// waitFor suspends cooperatively between attempts. Overridable in tests.
var waitFor = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry invokes op up to 1+MaxRetries times with exponential backoff. The
// last error propagates unchanged when retries are exhausted or ShouldRetry
// declines; the inter-attempt wait respects ctx so other in-flight work is
// never blocked.
func Retry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2
	}

	delay := cfg.InitialDelay
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if attempt == cfg.MaxRetries {
			return err
		}
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return err
		}
		if werr := waitFor(ctx, delay); werr != nil {
			return werr
		}
		next := time.Duration(float64(delay) * cfg.BackoffMultiplier)
		if next > cfg.MaxDelay {
			next = cfg.MaxDelay
		}
		delay = next
	}
}
