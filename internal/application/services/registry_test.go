package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreakerRegistry_OneInstancePerName(t *testing.T) {
	r := NewBreakerRegistry(&BreakerConfig{FailureThreshold: 2, VolumeThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute}, nil)

	a := r.Get("postgres")
	b := r.Get("postgres")
	c := r.Get("redis")

	require.Same(t, a, b)
	require.NotSame(t, a, c)
	require.ElementsMatch(t, []string{"postgres", "redis"}, r.Names())
}

func TestBulkheadRegistry_OneInstancePerName(t *testing.T) {
	r := NewBulkheadRegistry(&BulkheadConfig{MaxConcurrent: 2, MaxQueueLength: 1}, nil)

	a := r.Get("postgres")
	b := r.Get("postgres")

	require.Same(t, a, b)
	require.NotSame(t, a, r.Get("s3"))
}
