package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
)

// BreakerState represents circuit breaker state.
type BreakerState int32

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig groups circuit breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the run of consecutive failures that trips the
	// breaker once VolumeThreshold requests have been seen.
	FailureThreshold int
	// SuccessThreshold is the run of consecutive successes that closes a
	// half-open breaker.
	SuccessThreshold int
	// VolumeThreshold is the minimum request count before the breaker may
	// trip, so one-off failures on a cold breaker never open it.
	VolumeThreshold int
	// Timeout is how long an open breaker waits before permitting a trial.
	Timeout time.Duration
}

// CircuitBreaker fail-fasts calls to a failing dependency. One instance per
// dependency name, process-local: each process keeps its own failure view
// rather than paying a remote round trip per protected call.
type CircuitBreaker struct {
	name   string
	cfg    BreakerConfig
	logger *logrus.Logger

	mu            sync.Mutex
	state         BreakerState
	failureCount  int
	successCount  int
	totalRequests int
	lastFailure   time.Time
	nextAttempt   time.Time
}

func NewCircuitBreaker(name string, cfg *BreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	// Apply defaults
	c := BreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, VolumeThreshold: 10, Timeout: 60 * time.Second}
	if cfg != nil {
		if cfg.FailureThreshold > 0 {
			c.FailureThreshold = cfg.FailureThreshold
		}
		if cfg.SuccessThreshold > 0 {
			c.SuccessThreshold = cfg.SuccessThreshold
		}
		if cfg.VolumeThreshold > 0 {
			c.VolumeThreshold = cfg.VolumeThreshold
		}
		if cfg.Timeout > 0 {
			c.Timeout = cfg.Timeout
		}
	}
	return &CircuitBreaker{name: name, cfg: c, logger: logger, state: BreakerClosed}
}

// Execute runs op through the breaker. While open and before the next
// attempt time, op is never invoked: the fallback answers if supplied,
// otherwise a CircuitOpenError. Past the attempt time one call transitions
// the breaker to half-open and probes the dependency.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	return b.ExecuteWithFallback(ctx, op, nil)
}

// ExecuteWithFallback is Execute with a fallback invoked when the breaker is
// open or when op fails.
func (b *CircuitBreaker) ExecuteWithFallback(ctx context.Context, op, fallback func(ctx context.Context) error) error {
	b.mu.Lock()
	b.totalRequests++
	if b.state == BreakerOpen {
		now := time.Now()
		if now.Before(b.nextAttempt) {
			retryAfter := b.nextAttempt.Sub(now)
			b.mu.Unlock()
			if fallback != nil {
				return fallback(ctx)
			}
			return &limit.CircuitOpenError{Name: b.name, RetryAfter: retryAfter}
		}
		b.toHalfOpen()
	}
	b.mu.Unlock()

	err := op(ctx)
	if err == nil {
		b.onSuccess()
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// The caller gave up, not the dependency. Counting these would let a
		// burst of slow clients trip the breaker on a healthy dependency.
		return err
	}

	b.onFailure()
	if fallback != nil {
		return fallback(ctx)
	}
	return err
}

func (b *CircuitBreaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = BreakerClosed
			b.failureCount = 0
			b.successCount = 0
			if b.logger != nil {
				b.logger.WithField("breaker", b.name).Info("circuit breaker closed after recovery")
			}
		}
	case BreakerClosed:
		// Only a run of failures trips the breaker, not a total count.
		b.failureCount = 0
	}
}

func (b *CircuitBreaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailure = time.Now()
	if b.state == BreakerHalfOpen {
		// A single trial failure reopens immediately.
		b.trip()
		return
	}
	b.failureCount++
	if b.totalRequests >= b.cfg.VolumeThreshold && b.failureCount >= b.cfg.FailureThreshold {
		b.trip()
	}
}

// trip and toHalfOpen expect b.mu held.
func (b *CircuitBreaker) trip() {
	b.state = BreakerOpen
	b.successCount = 0
	b.nextAttempt = time.Now().Add(b.cfg.Timeout)
	if b.logger != nil {
		b.logger.WithFields(logrus.Fields{"breaker": b.name, "failures": b.failureCount}).Warn("circuit breaker opened")
	}
}

func (b *CircuitBreaker) toHalfOpen() {
	b.state = BreakerHalfOpen
	b.successCount = 0
	if b.logger != nil {
		b.logger.WithField("breaker", b.name).Info("circuit breaker half-open, probing")
	}
}

// State returns the current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns failure/success/total counters, mainly for metrics.
func (b *CircuitBreaker) Counts() (failures, successes, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount, b.successCount, b.totalRequests
}

// Reset forces the breaker back to closed with cleared counters.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failureCount = 0
	b.successCount = 0
	b.totalRequests = 0
	b.nextAttempt = time.Time{}
}
