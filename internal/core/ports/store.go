package ports

import (
	"context"
	"time"
)

// StateStore is the shared key-value capability the rate limiters coordinate
// through. Any store with per-key TTL and an atomic increment satisfies it;
// production uses Redis. Implementations must be safe for concurrent use and
// should return errors rather than crash callers — strategies fail open on
// store errors.
type StateStore interface {
	// Get returns the raw bytes for key. ok=false if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Increment atomically increments the integer at key and refreshes its
	// TTL, returning the updated count.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// DeletePattern removes all keys matching pattern (glob syntax),
	// returning how many were removed. Used by admin reset paths only.
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}
