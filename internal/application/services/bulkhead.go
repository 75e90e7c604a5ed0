package services

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
)

// Bulkhead caps concurrent use of one resource so its overload cannot starve
// others. Excess callers wait in a strict FIFO queue up to MaxQueueLength;
// beyond that they are rejected synchronously. Process-local by design.
type Bulkhead struct {
	name   string
	cfg    BulkheadConfig
	logger *logrus.Logger

	mu      sync.Mutex
	active  int
	waiters []chan struct{}
}

// BulkheadConfig groups bulkhead capacity parameters.
type BulkheadConfig struct {
	MaxConcurrent  int
	MaxQueueLength int
}

func NewBulkhead(name string, cfg *BulkheadConfig, logger *logrus.Logger) *Bulkhead {
	// Apply defaults; an explicit zero queue length is honored.
	c := BulkheadConfig{MaxConcurrent: 10, MaxQueueLength: 20}
	if cfg != nil {
		c = *cfg
		if c.MaxConcurrent <= 0 {
			c.MaxConcurrent = 10
		}
		if c.MaxQueueLength < 0 {
			c.MaxQueueLength = 0
		}
	}
	return &Bulkhead{name: name, cfg: c, logger: logger}
}

// Execute acquires a slot (waiting in FIFO order if none is free), runs op,
// and always releases the slot afterwards regardless of how op exits.
func (h *Bulkhead) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := h.acquire(ctx); err != nil {
		return err
	}
	defer h.release()
	return op(ctx)
}

func (h *Bulkhead) acquire(ctx context.Context) error {
	h.mu.Lock()
	if h.active < h.cfg.MaxConcurrent {
		h.active++
		h.mu.Unlock()
		return nil
	}
	if len(h.waiters) >= h.cfg.MaxQueueLength {
		h.mu.Unlock()
		if h.logger != nil {
			h.logger.WithField("bulkhead", h.name).Warn("bulkhead queue full, rejecting")
		}
		return &limit.BulkheadFullError{Name: h.name}
	}
	grant := make(chan struct{})
	h.waiters = append(h.waiters, grant)
	h.mu.Unlock()

	select {
	case <-grant:
		// Slot handed over by a completing holder; active already counts us.
		return nil
	case <-ctx.Done():
		h.mu.Lock()
		for i, w := range h.waiters {
			if w == grant {
				h.waiters = append(h.waiters[:i], h.waiters[i+1:]...)
				h.mu.Unlock()
				return ctx.Err()
			}
		}
		h.mu.Unlock()
		// The grant raced with cancellation: we own a slot, give it back.
		h.release()
		return ctx.Err()
	}
}

// release hands the slot to the queue head if one is waiting, otherwise
// frees it. Called on every exit path of Execute.
func (h *Bulkhead) release() {
	h.mu.Lock()
	if len(h.waiters) > 0 {
		grant := h.waiters[0]
		h.waiters = h.waiters[1:]
		h.mu.Unlock()
		close(grant)
		return
	}
	h.active--
	h.mu.Unlock()
}

// ActiveCount returns how many operations currently hold a slot.
func (h *Bulkhead) ActiveCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// QueueLength returns how many callers are waiting for a slot.
func (h *Bulkhead) QueueLength() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.waiters)
}
