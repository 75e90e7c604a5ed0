package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
	"github.com/journeymanlabs/trafficguard/internal/core/ports"
)

// AdaptiveLimiter is a policy layer over the sliding window: it shrinks the
// effective request limit as externally reported error rate and latency
// worsen. It persists no state of its own; each check delegates to a sliding
// window parameterized with the freshly computed limit.
type AdaptiveLimiter struct {
	store     ports.StateStore
	baseLimit int
	minLimit  int
	maxLimit  int
	window    time.Duration
	keyPrefix string
	logger    *logrus.Logger

	mu      sync.RWMutex
	metrics limit.SystemMetrics
}

// AdaptiveConfig groups configuration parameters for the adaptive limiter.
type AdaptiveConfig struct {
	BaseLimit int
	MinLimit  int
	MaxLimit  int
	Window    time.Duration
	KeyPrefix string
}

func NewAdaptiveLimiter(store ports.StateStore, cfg *AdaptiveConfig, logger *logrus.Logger) *AdaptiveLimiter {
	// Apply defaults
	base := 100
	min := 10
	max := 200
	w := time.Minute
	kp := "ratelimit:adaptive"
	if cfg != nil {
		if cfg.BaseLimit > 0 {
			base = cfg.BaseLimit
		}
		if cfg.MinLimit > 0 {
			min = cfg.MinLimit
		}
		if cfg.MaxLimit > 0 {
			max = cfg.MaxLimit
		}
		if cfg.Window > 0 {
			w = cfg.Window
		}
		if cfg.KeyPrefix != "" {
			kp = cfg.KeyPrefix
		}
	}
	return &AdaptiveLimiter{store: store, baseLimit: base, minLimit: min, maxLimit: max, window: w, keyPrefix: kp, logger: logger}
}

// UpdateMetrics replaces the load signals used for the next limit
// computation. The limiter never derives these itself.
func (s *AdaptiveLimiter) UpdateMetrics(m limit.SystemMetrics) {
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
}

// CurrentLimit computes the effective limit from the latest metrics. The two
// degradation factors compose: heavy errors and slow responses both shrink
// the limit.
func (s *AdaptiveLimiter) CurrentLimit() int {
	s.mu.RLock()
	m := s.metrics
	s.mu.RUnlock()

	current := float64(s.baseLimit)
	if m.ErrorRate > 0.05 {
		current *= 0.5
	} else if m.ErrorRate > 0.02 {
		current *= 0.7
	}
	if m.AvgResponseTime > 2000*time.Millisecond {
		current *= 0.6
	} else if m.AvgResponseTime > 1000*time.Millisecond {
		current *= 0.8
	}

	cl := int(current)
	if cl < s.minLimit {
		cl = s.minLimit
	}
	if cl > s.maxLimit {
		cl = s.maxLimit
	}
	return cl
}

// Allow delegates the admission check to a sliding window built with the
// current limit. The window state still lives in the shared store under this
// limiter's prefix, so continuity across calls is retained; only the limit
// parameter is recomputed.
func (s *AdaptiveLimiter) Allow(ctx context.Context, identifier string) (limit.Decision, error) {
	cl := s.CurrentLimit()
	window := NewSlidingWindowLimiter(s.store, &SlidingWindowConfig{
		MaxRequests: cl,
		Window:      s.window,
		KeyPrefix:   s.keyPrefix,
	}, s.logger)

	decision, err := window.Allow(ctx, identifier)
	if err != nil {
		return decision, err
	}
	decision.Limit = cl

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"identifier": identifier, "current_limit": cl, "allowed": decision.Allowed}).Debug("adaptive limiter decision")
	}
	return decision, nil
}
