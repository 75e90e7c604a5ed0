package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
)

func TestBulkhead_TwoRunOneQueuesOneRejected(t *testing.T) {
	h := NewBulkhead("db", &BulkheadConfig{MaxConcurrent: 2, MaxQueueLength: 1}, nil)

	block := make(chan struct{})
	var completed atomic.Int32
	var wg sync.WaitGroup

	blockingOp := func(ctx context.Context) error {
		<-block
		completed.Add(1)
		return nil
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, h.Execute(ctx, blockingOp))
		}()
	}
	require.Eventually(t, func() bool { return h.ActiveCount() == 2 }, time.Second, time.Millisecond)

	// Third caller queues.
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, h.Execute(ctx, blockingOp))
	}()
	require.Eventually(t, func() bool { return h.QueueLength() == 1 }, time.Second, time.Millisecond)

	// Fourth is rejected synchronously, not queued.
	err := h.Execute(ctx, blockingOp)
	var full *limit.BulkheadFullError
	require.ErrorAs(t, err, &full)
	require.Equal(t, "db", full.Name)

	close(block)
	wg.Wait()
	require.Equal(t, int32(3), completed.Load())
	require.Equal(t, 0, h.ActiveCount())
	require.Equal(t, 0, h.QueueLength())
}

func TestBulkhead_ReleasesSlotWhenOperationFails(t *testing.T) {
	h := NewBulkhead("db", &BulkheadConfig{MaxConcurrent: 1, MaxQueueLength: 0}, nil)

	ctx := context.Background()
	err := h.Execute(ctx, func(ctx context.Context) error { return context.DeadlineExceeded })
	require.Error(t, err)
	require.Equal(t, 0, h.ActiveCount())

	// Slot is free again.
	require.NoError(t, h.Execute(ctx, func(ctx context.Context) error { return nil }))
}

func TestBulkhead_QueuedCallerRunsInFIFOOrder(t *testing.T) {
	h := NewBulkhead("db", &BulkheadConfig{MaxConcurrent: 1, MaxQueueLength: 2}, nil)

	block := make(chan struct{})
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	ctx := context.Background()
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = h.Execute(ctx, func(ctx context.Context) error {
			<-block
			return nil
		})
	}()
	require.Eventually(t, func() bool { return h.ActiveCount() == 1 }, time.Second, time.Millisecond)

	for i := 1; i <= 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Execute(ctx, func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		require.Eventually(t, func() bool { return h.QueueLength() == i }, time.Second, time.Millisecond)
	}

	close(block)
	wg.Wait()
	require.Equal(t, []int{1, 2}, order)
}

func TestBulkhead_CancelledWaiterLeavesQueue(t *testing.T) {
	h := NewBulkhead("db", &BulkheadConfig{MaxConcurrent: 1, MaxQueueLength: 1}, nil)

	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = h.Execute(context.Background(), func(ctx context.Context) error {
			<-block
			return nil
		})
	}()
	require.Eventually(t, func() bool { return h.ActiveCount() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Execute(ctx, func(ctx context.Context) error { return nil })
	}()
	require.Eventually(t, func() bool { return h.QueueLength() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	require.Equal(t, 0, h.QueueLength())

	close(block)
	wg.Wait()
	require.Equal(t, 0, h.ActiveCount())
}
