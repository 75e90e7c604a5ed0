package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/journeymanlabs/trafficguard/internal/application/services"
	"github.com/journeymanlabs/trafficguard/internal/core/ports"
)

// MiddlewareCollection holds all middleware instances
type MiddlewareCollection struct {
	LoadShed  *LoadShedMiddleware
	RateLimit *RateLimitMiddleware
	Timeout   *TimeoutMiddleware
	Logging   *LoggingMiddleware
	Metrics   *MetricsMiddleware
}

// NewMiddlewareCollection creates a new collection of all middleware
func NewMiddlewareCollection(
	strategy ports.RateLimitStrategy,
	shedder *services.LoadShedder,
	identifier IdentifierFunc,
	priority PriorityFunc,
	requestTimeout time.Duration,
	logger *logrus.Logger,
	requestsTotal *prometheus.CounterVec,
	requestDuration *prometheus.HistogramVec,
	rateLimitDecisions *prometheus.CounterVec,
	sheddedTotal prometheus.Counter,
) *MiddlewareCollection {
	return &MiddlewareCollection{
		LoadShed:  NewLoadShedMiddleware(shedder, priority, sheddedTotal, logger),
		RateLimit: NewRateLimitMiddleware(strategy, identifier, rateLimitDecisions, logger),
		Timeout:   NewTimeoutMiddleware(requestTimeout, logger),
		Logging:   NewLoggingMiddleware(logger),
		Metrics:   NewMetricsMiddleware(requestsTotal, requestDuration),
	}
}
