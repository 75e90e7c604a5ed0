package configs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	Breaker   BreakerConfig
	Bulkhead  BulkheadConfig
	Shedding  SheddingConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	TLSCertFile    string
	TLSKeyFile     string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

// RateLimitConfig selects and parameterizes the inbound rate-limit strategy.
type RateLimitConfig struct {
	Strategy  string // token_bucket, sliding_window, adaptive
	KeyPrefix string
	// Token bucket
	BucketCapacity   float64
	BucketRefillRate float64
	// Sliding window (also the adaptive delegate)
	MaxRequests int
	Window      time.Duration
	// Adaptive bounds
	AdaptiveBaseLimit int
	AdaptiveMinLimit  int
	AdaptiveMaxLimit  int
}

// BreakerConfig holds the registry-wide circuit breaker defaults.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	VolumeThreshold  int
	Timeout          time.Duration
}

// BulkheadConfig holds the registry-wide bulkhead defaults.
type BulkheadConfig struct {
	MaxConcurrent  int
	MaxQueueLength int
}

// SheddingConfig parameterizes the load shedding admission gate.
type SheddingConfig struct {
	MaxConcurrent   int
	MaxQueueSize    int
	ShedProbability float64
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			RequestTimeout: getDurationEnv("SERVER_REQUEST_TIMEOUT", 25*time.Second),
			TLSCertFile:    getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:     getEnv("TLS_KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "journeyman_db"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:  getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Strategy:          getEnv("RATE_LIMIT_STRATEGY", "token_bucket"),
			KeyPrefix:         getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
			BucketCapacity:    getFloatEnv("RATE_LIMIT_BUCKET_CAPACITY", 100),
			BucketRefillRate:  getFloatEnv("RATE_LIMIT_BUCKET_REFILL_RATE", 10),
			MaxRequests:       getIntEnv("RATE_LIMIT_MAX_REQUESTS", 100),
			Window:            getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
			AdaptiveBaseLimit: getIntEnv("RATE_LIMIT_ADAPTIVE_BASE", 100),
			AdaptiveMinLimit:  getIntEnv("RATE_LIMIT_ADAPTIVE_MIN", 10),
			AdaptiveMaxLimit:  getIntEnv("RATE_LIMIT_ADAPTIVE_MAX", 200),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getIntEnv("BREAKER_FAILURE_THRESHOLD", 5),
			SuccessThreshold: getIntEnv("BREAKER_SUCCESS_THRESHOLD", 2),
			VolumeThreshold:  getIntEnv("BREAKER_VOLUME_THRESHOLD", 10),
			Timeout:          getDurationEnv("BREAKER_TIMEOUT", time.Minute),
		},
		Bulkhead: BulkheadConfig{
			MaxConcurrent:  getIntEnv("BULKHEAD_MAX_CONCURRENT", 10),
			MaxQueueLength: getIntEnv("BULKHEAD_MAX_QUEUE", 20),
		},
		Shedding: SheddingConfig{
			MaxConcurrent:   getIntEnv("SHED_MAX_CONCURRENT", 100),
			MaxQueueSize:    getIntEnv("SHED_MAX_QUEUE", 50),
			ShedProbability: getFloatEnv("SHED_PROBABILITY", 0.5),
		},
	}

	// Build database DSN
	cfg.Database.DSN = fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
