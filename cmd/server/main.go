package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	config "github.com/journeymanlabs/trafficguard/configs"
	"github.com/journeymanlabs/trafficguard/internal/application/services"
	"github.com/journeymanlabs/trafficguard/internal/core/ports"
	"github.com/journeymanlabs/trafficguard/internal/infrastructure/db"
	"github.com/journeymanlabs/trafficguard/internal/infrastructure/health"
	"github.com/journeymanlabs/trafficguard/internal/infrastructure/httpserver"
	"github.com/journeymanlabs/trafficguard/internal/infrastructure/redis"
	"github.com/journeymanlabs/trafficguard/internal/infrastructure/repositories"
)

// metricsSampleInterval is how often the adaptive limiter is fed fresh load
// signals derived from the HTTP metrics middleware.
const metricsSampleInterval = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.Info("Starting Journeyman traffic guard...")

	// Initialize database (apply pool settings from config)
	database, err := db.Connect(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	logger.Info("Connected to database successfully")

	// Initialize Redis client
	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	logger.Info("Connected to Redis successfully")

	// Run migrations
	if err := database.Migrate("./migrations"); err != nil {
		logger.Warn("Failed to run migrations:", err)
	}

	// Shared state store backing all rate-limit strategies
	stateStore := redis.NewRedisStateStore(redisClient, "trafficguard")

	strategy := buildStrategy(stateStore, &cfg.RateLimit, logger)
	shedder := services.NewLoadShedder(&services.ShedderConfig{
		MaxConcurrent:   cfg.Shedding.MaxConcurrent,
		MaxQueueSize:    cfg.Shedding.MaxQueueSize,
		ShedProbability: cfg.Shedding.ShedProbability,
	}, logger, time.Now().UnixNano())

	// Process-local registries: one breaker/bulkhead per dependency name
	breakers := services.NewBreakerRegistry(&services.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		VolumeThreshold:  cfg.Breaker.VolumeThreshold,
		Timeout:          cfg.Breaker.Timeout,
	}, logger)
	bulkheads := services.NewBulkheadRegistry(&services.BulkheadConfig{
		MaxConcurrent:  cfg.Bulkhead.MaxConcurrent,
		MaxQueueLength: cfg.Bulkhead.MaxQueueLength,
	}, logger)

	sessionRepo := repositories.NewSessionRepository(database, logger)

	hcSlice := []ports.HealthChecker{health.NewDBHealthChecker(database), health.NewRedisHealthChecker(redisClient)}

	// Create server configuration
	serverConfig := &httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		TLSCertFile:    cfg.Server.TLSCertFile,
		TLSKeyFile:     cfg.Server.TLSKeyFile,
	}

	deps := httpserver.ServerDeps{
		Strategy:        strategy,
		Shedder:         shedder,
		Breakers:        breakers,
		Bulkheads:       bulkheads,
		SessionRecorder: sessionRepo,
		HealthCheckers:  hcSlice,
	}

	server := httpserver.NewServer(serverConfig, logger, deps)

	// Feed the adaptive limiter from the HTTP metrics middleware
	samplerDone := make(chan struct{})
	if sink, ok := strategy.(ports.MetricsSink); ok {
		go runMetricsSampler(sink, server, samplerDone)
	}

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	close(samplerDone)

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

// buildStrategy selects the configured rate-limit strategy.
func buildStrategy(store ports.StateStore, cfg *config.RateLimitConfig, logger *logrus.Logger) ports.RateLimitStrategy {
	switch cfg.Strategy {
	case "sliding_window":
		return services.NewSlidingWindowLimiter(store, &services.SlidingWindowConfig{
			MaxRequests: cfg.MaxRequests,
			Window:      cfg.Window,
			KeyPrefix:   cfg.KeyPrefix + ":window",
		}, logger)
	case "adaptive":
		return services.NewAdaptiveLimiter(store, &services.AdaptiveConfig{
			BaseLimit: cfg.AdaptiveBaseLimit,
			MinLimit:  cfg.AdaptiveMinLimit,
			MaxLimit:  cfg.AdaptiveMaxLimit,
			Window:    cfg.Window,
			KeyPrefix: cfg.KeyPrefix + ":adaptive",
		}, logger)
	default:
		return services.NewTokenBucketLimiter(store, &services.TokenBucketConfig{
			Capacity:   cfg.BucketCapacity,
			RefillRate: cfg.BucketRefillRate,
			KeyPrefix:  cfg.KeyPrefix + ":bucket",
		}, logger)
	}
}

func runMetricsSampler(sink ports.MetricsSink, server *httpserver.Server, done <-chan struct{}) {
	ticker := time.NewTicker(metricsSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sink.UpdateMetrics(server.Metrics().Snapshot())
		case <-done:
			return
		}
	}
}
