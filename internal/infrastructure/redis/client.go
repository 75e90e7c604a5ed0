package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-redis/redis/v8"

	config "github.com/journeymanlabs/trafficguard/configs"
)

// connectTimeout bounds the startup ping so a dead Redis fails the boot
// fast instead of hanging it.
const connectTimeout = 3 * time.Second

// defaultCommandTimeout replaces unset read/write timeouts. Limiter lookups
// sit on the hot path of every request; a stalled lookup must turn into a
// fail-open decision quickly, not hold the request for the driver's default.
const defaultCommandTimeout = 500 * time.Millisecond

// NewRedisClient connects to the store shared by all rate-limit strategies.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultCommandTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultCommandTimeout
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to limiter state store: %w", err)
	}

	return client, nil
}
