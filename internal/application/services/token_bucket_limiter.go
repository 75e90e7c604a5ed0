package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
	"github.com/journeymanlabs/trafficguard/internal/core/ports"
)

// bucketTTL bounds how long an idle bucket survives in the store.
const bucketTTL = time.Hour

// TokenBucketLimiter implements RateLimitStrategy with a continuously
// refilling token bucket persisted in the shared store, so short bursts up to
// Capacity are permitted and all server processes see the same bucket.
type TokenBucketLimiter struct {
	store      ports.StateStore
	capacity   float64
	refillRate float64
	keyPrefix  string
	logger     *logrus.Logger
}

// TokenBucketConfig groups configuration parameters for the token bucket.
type TokenBucketConfig struct {
	Capacity   float64
	RefillRate float64 // tokens per second
	KeyPrefix  string
}

func NewTokenBucketLimiter(store ports.StateStore, cfg *TokenBucketConfig, logger *logrus.Logger) *TokenBucketLimiter {
	// Apply defaults
	cap := 100.0
	rate := 10.0
	kp := "ratelimit:bucket"
	if cfg != nil {
		if cfg.Capacity > 0 {
			cap = cfg.Capacity
		}
		if cfg.RefillRate > 0 {
			rate = cfg.RefillRate
		}
		if cfg.KeyPrefix != "" {
			kp = cfg.KeyPrefix
		}
	}
	return &TokenBucketLimiter{store: store, capacity: cap, refillRate: rate, keyPrefix: kp, logger: logger}
}

// Allow consumes one token for the identifier.
func (s *TokenBucketLimiter) Allow(ctx context.Context, identifier string) (limit.Decision, error) {
	return s.Consume(ctx, identifier, 1)
}

// Consume takes the requested number of tokens from the identifier's bucket.
// The bucket is written back even when the request is denied so the refill
// clock keeps advancing and later checks stay accurate.
func (s *TokenBucketLimiter) Consume(ctx context.Context, identifier string, requested float64) (limit.Decision, error) {
	key := fmt.Sprintf("%s:%s", s.keyPrefix, identifier)
	now := time.Now()

	state, err := s.loadBucket(ctx, key, now)
	if err != nil {
		return s.failOpen("get", identifier, err), nil
	}

	elapsed := now.Sub(state.LastRefillAt).Seconds()
	state.Tokens = math.Min(state.Tokens+elapsed*s.refillRate, s.capacity)
	state.LastRefillAt = now

	resetIn := time.Duration(math.Ceil(math.Max(requested-state.Tokens, 0)/s.refillRate)) * time.Second

	allowed := state.Tokens >= requested
	if allowed {
		state.Tokens -= requested
	}

	if err := s.saveBucket(ctx, key, state); err != nil {
		return s.failOpen("set", identifier, err), nil
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"identifier": identifier, "tokens": state.Tokens, "allowed": allowed}).Debug("token bucket state")
	}

	return limit.Decision{
		Allowed:   allowed,
		Remaining: int(state.Tokens),
		ResetIn:   resetIn,
		Limit:     int(s.capacity),
	}, nil
}

func (s *TokenBucketLimiter) loadBucket(ctx context.Context, key string, now time.Time) (*limit.BucketState, error) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, &limit.StoreUnavailableError{Op: "get", Err: err}
	}
	if !ok {
		// Lazy init: a fresh bucket starts full.
		return &limit.BucketState{Tokens: s.capacity, LastRefillAt: now}, nil
	}
	var state limit.BucketState
	if err := json.Unmarshal(raw, &state); err != nil {
		// Corrupt state is treated like a missing bucket.
		return &limit.BucketState{Tokens: s.capacity, LastRefillAt: now}, nil
	}
	return &state, nil
}

func (s *TokenBucketLimiter) saveBucket(ctx context.Context, key string, state *limit.BucketState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, key, raw, bucketTTL); err != nil {
		return &limit.StoreUnavailableError{Op: "set", Err: err}
	}
	return nil
}

func (s *TokenBucketLimiter) failOpen(op, identifier string, err error) limit.Decision {
	return failOpenDecision(s.logger, "token_bucket", op, identifier, int(s.capacity), err)
}
