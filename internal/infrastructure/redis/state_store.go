package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStateStore implements ports.StateStore on a Redis client. Rate
// limiter state is shared here across all server processes; last-writer-wins
// on concurrent updates is acceptable because TTLs bound staleness.
type RedisStateStore struct {
	r redis.Cmdable
	// optional key prefix to namespace entries
	prefix string
}

// NewRedisStateStore creates a Redis-backed shared state store.
func NewRedisStateStore(r redis.Cmdable, prefix string) *RedisStateStore {
	return &RedisStateStore{r: r, prefix: prefix}
}

func (s *RedisStateStore) namespaced(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Get implements StateStore.Get.
func (s *RedisStateStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ns := s.namespaced(key)
	val, err := s.r.Get(ctx, ns).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set implements StateStore.Set.
func (s *RedisStateStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ns := s.namespaced(key)
	return s.r.Set(ctx, ns, value, ttl).Err()
}

// Increment implements StateStore.Increment with a transactional pipeline so
// the INCR and EXPIRE land together.
func (s *RedisStateStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ns := s.namespaced(key)
	pipe := s.r.TxPipeline()
	incr := pipe.Incr(ctx, ns)
	pipe.Expire(ctx, ns, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Exists implements StateStore.Exists.
func (s *RedisStateStore) Exists(ctx context.Context, key string) (bool, error) {
	ns := s.namespaced(key)
	n, err := s.r.Exists(ctx, ns).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeletePattern implements StateStore.DeletePattern via SCAN, so admin
// resets do not block Redis the way KEYS would.
func (s *RedisStateStore) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	ns := s.namespaced(pattern)
	var deleted int64
	iter := s.r.Scan(ctx, 0, ns, 0).Iterator()
	for iter.Next(ctx) {
		if err := s.r.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, err
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	return deleted, nil
}
