package mocks

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
	"github.com/journeymanlabs/trafficguard/internal/core/domain/session"
)

// MemoryStateStore is an in-memory StateStore for tests. TTLs are honored
// lazily on read.
type MemoryStateStore struct {
	mu      sync.Mutex
	values  map[string]memEntry
	nowFunc func() time.Time
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{values: make(map[string]memEntry), nowFunc: time.Now}
}

func (s *MemoryStateStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[key]
	if !ok || s.expired(e) {
		delete(s.values, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStateStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = memEntry{value: value, expiresAt: s.expiry(ttl)}
	return nil
}

func (s *MemoryStateStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	if e, ok := s.values[key]; ok && !s.expired(e) {
		n, _ = strconv.ParseInt(string(e.value), 10, 64)
	}
	n++
	s.values[key] = memEntry{value: []byte(strconv.FormatInt(n, 10)), expiresAt: s.expiry(ttl)}
	return n, nil
}

func (s *MemoryStateStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *MemoryStateStore) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Only the "everything under a prefix" form is needed in tests.
	var deleted int64
	prefix := pattern
	if n := len(prefix); n > 0 && prefix[n-1] == '*' {
		prefix = prefix[:n-1]
	}
	for k := range s.values {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(s.values, k)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStateStore) expired(e memEntry) bool {
	return !e.expiresAt.IsZero() && s.nowFunc().After(e.expiresAt)
}

func (s *MemoryStateStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.nowFunc().Add(ttl)
}

// StateStoreMock lets a test fail or observe individual store operations.
type StateStoreMock struct {
	GetFn           func(ctx context.Context, key string) ([]byte, bool, error)
	SetFn           func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrementFn     func(ctx context.Context, key string, ttl time.Duration) (int64, error)
	ExistsFn        func(ctx context.Context, key string) (bool, error)
	DeletePatternFn func(ctx context.Context, pattern string) (int64, error)
}

func (m *StateStoreMock) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, key)
	}
	return nil, false, nil
}

func (m *StateStoreMock) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFn != nil {
		return m.SetFn(ctx, key, value, ttl)
	}
	return nil
}

func (m *StateStoreMock) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if m.IncrementFn != nil {
		return m.IncrementFn(ctx, key, ttl)
	}
	return 1, nil
}

func (m *StateStoreMock) Exists(ctx context.Context, key string) (bool, error) {
	if m.ExistsFn != nil {
		return m.ExistsFn(ctx, key)
	}
	return false, nil
}

func (m *StateStoreMock) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	if m.DeletePatternFn != nil {
		return m.DeletePatternFn(ctx, pattern)
	}
	return 0, nil
}

// RateLimitStrategyMock stubs a strategy for middleware tests.
type RateLimitStrategyMock struct {
	AllowFn func(ctx context.Context, identifier string) (limit.Decision, error)
}

func (m *RateLimitStrategyMock) Allow(ctx context.Context, identifier string) (limit.Decision, error) {
	if m.AllowFn != nil {
		return m.AllowFn(ctx, identifier)
	}
	return limit.Decision{Allowed: true}, nil
}

// SessionRecorderMock stubs the protected downstream for handler tests.
type SessionRecorderMock struct {
	RecordSessionFn func(ctx context.Context, s *session.GameSession) error
	LeaderboardFn   func(ctx context.Context, topN int) ([]session.LeaderboardEntry, error)
}

func (m *SessionRecorderMock) RecordSession(ctx context.Context, s *session.GameSession) error {
	if m.RecordSessionFn != nil {
		return m.RecordSessionFn(ctx, s)
	}
	return nil
}

func (m *SessionRecorderMock) Leaderboard(ctx context.Context, topN int) ([]session.LeaderboardEntry, error) {
	if m.LeaderboardFn != nil {
		return m.LeaderboardFn(ctx, topN)
	}
	return nil, nil
}
