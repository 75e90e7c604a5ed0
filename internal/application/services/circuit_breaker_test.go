package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
)

var errDown = errors.New("dependency down")

func failingOp(ctx context.Context) error { return errDown }
func passingOp(ctx context.Context) error { return nil }

func TestBreaker_StaysClosedBelowVolumeThreshold(t *testing.T) {
	b := NewCircuitBreaker("db", &BreakerConfig{FailureThreshold: 3, VolumeThreshold: 10, SuccessThreshold: 1, Timeout: time.Minute}, nil)

	ctx := context.Background()
	for i := 0; i < 9; i++ {
		require.Error(t, b.Execute(ctx, failingOp))
	}
	require.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_OpensOnConsecutiveFailuresPastVolume(t *testing.T) {
	b := NewCircuitBreaker("db", &BreakerConfig{FailureThreshold: 5, VolumeThreshold: 10, SuccessThreshold: 1, Timeout: time.Minute}, nil)

	ctx := context.Background()
	// Five successes then five consecutive failures.
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Execute(ctx, passingOp))
	}
	for i := 0; i < 5; i++ {
		require.Error(t, b.Execute(ctx, failingOp))
	}
	require.Equal(t, BreakerOpen, b.State())

	// Call #11 within the timeout uses the fallback and never invokes op.
	invoked := false
	fallbackUsed := false
	err := b.ExecuteWithFallback(ctx,
		func(ctx context.Context) error { invoked = true; return nil },
		func(ctx context.Context) error { fallbackUsed = true; return nil })
	require.NoError(t, err)
	require.False(t, invoked)
	require.True(t, fallbackUsed)
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	b := NewCircuitBreaker("db", &BreakerConfig{FailureThreshold: 3, VolumeThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute}, nil)

	ctx := context.Background()
	require.Error(t, b.Execute(ctx, failingOp))
	require.Error(t, b.Execute(ctx, failingOp))
	require.NoError(t, b.Execute(ctx, passingOp))
	require.Error(t, b.Execute(ctx, failingOp))
	require.Error(t, b.Execute(ctx, failingOp))
	// Never three in a row, so still closed.
	require.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_OpenWithoutFallbackReturnsCircuitOpenError(t *testing.T) {
	b := NewCircuitBreaker("db", &BreakerConfig{FailureThreshold: 1, VolumeThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute}, nil)

	ctx := context.Background()
	require.Error(t, b.Execute(ctx, failingOp))
	require.Equal(t, BreakerOpen, b.State())

	err := b.Execute(ctx, passingOp)
	var open *limit.CircuitOpenError
	require.ErrorAs(t, err, &open)
	require.Equal(t, "db", open.Name)
	require.Greater(t, open.RetryAfter, time.Duration(0))
}

func TestBreaker_HalfOpenProbeAndRecovery(t *testing.T) {
	b := NewCircuitBreaker("db", &BreakerConfig{FailureThreshold: 1, VolumeThreshold: 1, SuccessThreshold: 2, Timeout: 20 * time.Millisecond}, nil)

	ctx := context.Background()
	require.Error(t, b.Execute(ctx, failingOp))
	require.Equal(t, BreakerOpen, b.State())

	time.Sleep(30 * time.Millisecond)

	// First trial transitions to half-open.
	require.NoError(t, b.Execute(ctx, passingOp))
	require.Equal(t, BreakerHalfOpen, b.State())

	// Second consecutive success closes it.
	require.NoError(t, b.Execute(ctx, passingOp))
	require.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopensImmediately(t *testing.T) {
	b := NewCircuitBreaker("db", &BreakerConfig{FailureThreshold: 1, VolumeThreshold: 1, SuccessThreshold: 2, Timeout: 20 * time.Millisecond}, nil)

	ctx := context.Background()
	require.Error(t, b.Execute(ctx, failingOp))
	time.Sleep(30 * time.Millisecond)

	require.Error(t, b.Execute(ctx, failingOp))
	require.Equal(t, BreakerOpen, b.State())

	// Short-circuited again until the new timeout elapses.
	invoked := false
	err := b.Execute(ctx, func(ctx context.Context) error { invoked = true; return nil })
	require.Error(t, err)
	require.False(t, invoked)
}

func TestBreaker_FallbackAbsorbsOperationFailure(t *testing.T) {
	b := NewCircuitBreaker("db", &BreakerConfig{FailureThreshold: 5, VolumeThreshold: 10, SuccessThreshold: 1, Timeout: time.Minute}, nil)

	err := b.ExecuteWithFallback(context.Background(), failingOp,
		func(ctx context.Context) error { return nil })
	require.NoError(t, err)
}

func TestBreaker_ResetClosesAndClearsCounters(t *testing.T) {
	b := NewCircuitBreaker("db", &BreakerConfig{FailureThreshold: 1, VolumeThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute}, nil)

	require.Error(t, b.Execute(context.Background(), failingOp))
	require.Equal(t, BreakerOpen, b.State())

	b.Reset()
	require.Equal(t, BreakerClosed, b.State())
	failures, successes, total := b.Counts()
	require.Zero(t, failures)
	require.Zero(t, successes)
	require.Zero(t, total)
}

func TestBreaker_ContextErrorsDoNotCountAsFailures(t *testing.T) {
	b := NewCircuitBreaker("db", &BreakerConfig{FailureThreshold: 1, VolumeThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute}, nil)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		err := b.Execute(ctx, func(ctx context.Context) error { return context.DeadlineExceeded })
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}
	require.Equal(t, BreakerClosed, b.State())
	failures, _, _ := b.Counts()
	require.Zero(t, failures)

	// A genuine dependency failure still trips it.
	require.Error(t, b.Execute(ctx, failingOp))
	require.Equal(t, BreakerOpen, b.State())
}

func TestBreaker_CancelledCallSkipsFallback(t *testing.T) {
	b := NewCircuitBreaker("db", &BreakerConfig{FailureThreshold: 1, VolumeThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute}, nil)

	fallbackRan := false
	err := b.ExecuteWithFallback(context.Background(),
		func(ctx context.Context) error { return context.Canceled },
		func(ctx context.Context) error { fallbackRan = true; return nil })

	require.ErrorIs(t, err, context.Canceled)
	require.False(t, fallbackRan)
	require.Equal(t, BreakerClosed, b.State())
}
