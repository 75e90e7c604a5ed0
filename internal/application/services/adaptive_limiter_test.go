package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
	"github.com/journeymanlabs/trafficguard/test/mocks"
)

func newAdaptive(t *testing.T, base, min, max int) *AdaptiveLimiter {
	t.Helper()
	return NewAdaptiveLimiter(mocks.NewMemoryStateStore(), &AdaptiveConfig{
		BaseLimit: base,
		MinLimit:  min,
		MaxLimit:  max,
		Window:    time.Minute,
		KeyPrefix: "ad",
	}, nil)
}

func TestAdaptive_LimitShrinksWithErrorRate(t *testing.T) {
	al := newAdaptive(t, 100, 1, 200)

	require.Equal(t, 100, al.CurrentLimit())

	al.UpdateMetrics(limit.SystemMetrics{ErrorRate: 0.03})
	require.Equal(t, 70, al.CurrentLimit())

	al.UpdateMetrics(limit.SystemMetrics{ErrorRate: 0.06})
	require.Equal(t, 50, al.CurrentLimit())
}

func TestAdaptive_LimitShrinksWithLatency(t *testing.T) {
	al := newAdaptive(t, 100, 1, 200)

	al.UpdateMetrics(limit.SystemMetrics{AvgResponseTime: 1500 * time.Millisecond})
	require.Equal(t, 80, al.CurrentLimit())

	al.UpdateMetrics(limit.SystemMetrics{AvgResponseTime: 2500 * time.Millisecond})
	require.Equal(t, 60, al.CurrentLimit())
}

func TestAdaptive_FactorsCompose(t *testing.T) {
	al := newAdaptive(t, 100, 1, 200)

	al.UpdateMetrics(limit.SystemMetrics{ErrorRate: 0.06, AvgResponseTime: 2500 * time.Millisecond})
	require.Equal(t, 30, al.CurrentLimit())
}

func TestAdaptive_LimitStaysWithinBounds(t *testing.T) {
	al := newAdaptive(t, 100, 40, 200)
	al.UpdateMetrics(limit.SystemMetrics{ErrorRate: 0.5, AvgResponseTime: 10 * time.Second})
	require.Equal(t, 40, al.CurrentLimit())

	al = newAdaptive(t, 500, 10, 120)
	require.Equal(t, 120, al.CurrentLimit())
}

func TestAdaptive_LimitMonotonicallyNonIncreasing(t *testing.T) {
	al := newAdaptive(t, 100, 1, 200)

	prev := al.CurrentLimit()
	for _, m := range []limit.SystemMetrics{
		{ErrorRate: 0.01, AvgResponseTime: 500 * time.Millisecond},
		{ErrorRate: 0.03, AvgResponseTime: 500 * time.Millisecond},
		{ErrorRate: 0.03, AvgResponseTime: 1500 * time.Millisecond},
		{ErrorRate: 0.06, AvgResponseTime: 1500 * time.Millisecond},
		{ErrorRate: 0.06, AvgResponseTime: 2500 * time.Millisecond},
	} {
		al.UpdateMetrics(m)
		current := al.CurrentLimit()
		require.LessOrEqual(t, current, prev)
		prev = current
	}
}

func TestAdaptive_DelegatesAdmissionToSlidingWindow(t *testing.T) {
	al := newAdaptive(t, 4, 1, 10)
	al.UpdateMetrics(limit.SystemMetrics{ErrorRate: 0.06}) // limit becomes 2

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		d, err := al.Allow(ctx, "player-1")
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, 2, d.Limit)
	}

	d, err := al.Allow(ctx, "player-1")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 2, d.Limit)
}
