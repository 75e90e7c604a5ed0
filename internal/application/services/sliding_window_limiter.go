package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
	"github.com/journeymanlabs/trafficguard/internal/core/ports"
)

// SlidingWindowLimiter implements RateLimitStrategy by counting request
// timestamps in a moving interval, which avoids the boundary spikes of fixed
// windows. State lives in the shared store so all processes enforce the same
// window per identifier.
type SlidingWindowLimiter struct {
	store       ports.StateStore
	maxRequests int
	window      time.Duration
	keyPrefix   string
	logger      *logrus.Logger
}

// SlidingWindowConfig groups configuration parameters for the sliding window.
type SlidingWindowConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

func NewSlidingWindowLimiter(store ports.StateStore, cfg *SlidingWindowConfig, logger *logrus.Logger) *SlidingWindowLimiter {
	// Apply defaults
	mr := 100
	w := time.Minute
	kp := "ratelimit:window"
	if cfg != nil {
		if cfg.MaxRequests > 0 {
			mr = cfg.MaxRequests
		}
		if cfg.Window > 0 {
			w = cfg.Window
		}
		if cfg.KeyPrefix != "" {
			kp = cfg.KeyPrefix
		}
	}
	return &SlidingWindowLimiter{store: store, maxRequests: mr, window: w, keyPrefix: kp, logger: logger}
}

// Allow prunes the identifier's window to the trailing interval, admits the
// request if fewer than maxRequests remain, and persists the result either
// way. TTL matches the window so idle identifiers expire on their own.
func (s *SlidingWindowLimiter) Allow(ctx context.Context, identifier string) (limit.Decision, error) {
	key := fmt.Sprintf("%s:%s", s.keyPrefix, identifier)
	now := time.Now()
	nowMs := now.UnixMilli()
	cutoff := nowMs - s.window.Milliseconds()

	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return s.failOpen("get", identifier, err), nil
	}

	var state limit.WindowState
	if ok {
		if err := json.Unmarshal(raw, &state); err != nil {
			state.Timestamps = nil
		}
	}

	retained := state.Timestamps[:0]
	for _, ts := range state.Timestamps {
		if ts >= cutoff {
			retained = append(retained, ts)
		}
	}
	state.Timestamps = retained

	allowed := len(state.Timestamps) < s.maxRequests
	if allowed {
		state.Timestamps = append(state.Timestamps, nowMs)
	}

	ttl := time.Duration(ceilSeconds(s.window)) * time.Second
	data, _ := json.Marshal(&state)
	if err := s.store.Set(ctx, key, data, ttl); err != nil {
		return s.failOpen("set", identifier, err), nil
	}

	var resetIn time.Duration
	if len(state.Timestamps) > 0 {
		oldest := state.Timestamps[0]
		if until := oldest + s.window.Milliseconds() - nowMs; until > 0 {
			resetIn = time.Duration(until) * time.Millisecond
		}
	}
	if allowed {
		resetIn = 0
	}

	remaining := s.maxRequests - len(state.Timestamps)
	if remaining < 0 {
		remaining = 0
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"identifier": identifier, "count": len(state.Timestamps), "allowed": allowed}).Debug("sliding window state")
	}

	return limit.Decision{
		Allowed:   allowed,
		Remaining: remaining,
		ResetIn:   resetIn,
		Limit:     s.maxRequests,
	}, nil
}

func (s *SlidingWindowLimiter) failOpen(op, identifier string, err error) limit.Decision {
	return failOpenDecision(s.logger, "sliding_window", op, identifier, s.maxRequests, err)
}

// ceilSeconds rounds a duration up to whole seconds.
func ceilSeconds(d time.Duration) int64 {
	secs := d / time.Second
	if d%time.Second != 0 {
		secs++
	}
	return int64(secs)
}
