package middleware

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
)

// MetricsMiddleware collects HTTP request metrics and keeps rolling counters
// the adaptive limiter's sampler reads as its error-rate and latency source.
type MetricsMiddleware struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// rolling window counters, reset on every Snapshot
	sampleCount   atomic.Int64
	errorCount    atomic.Int64
	durationTotal atomic.Int64 // milliseconds
}

// NewMetricsMiddleware creates a new metrics middleware instance
func NewMetricsMiddleware(requestsTotal *prometheus.CounterVec, requestDuration *prometheus.HistogramVec) *MetricsMiddleware {
	return &MetricsMiddleware{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
	}
}

// CollectHTTPMetrics creates middleware that collects HTTP request metrics
func (m *MetricsMiddleware) CollectHTTPMetrics() echo.MiddlewareFunc {
	return echo.MiddlewareFunc(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			elapsed := time.Since(start)
			method := c.Request().Method
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())

			m.sampleCount.Add(1)
			m.durationTotal.Add(elapsed.Milliseconds())
			if status >= 500 {
				m.errorCount.Add(1)
			}

			return err
		}
	})
}

// Snapshot returns the load signals accumulated since the previous call and
// resets the rolling counters. Zero metrics are reported when no traffic was
// seen, which leaves the adaptive limiter at its base limit.
func (m *MetricsMiddleware) Snapshot() limit.SystemMetrics {
	count := m.sampleCount.Swap(0)
	errs := m.errorCount.Swap(0)
	totalMs := m.durationTotal.Swap(0)
	if count == 0 {
		return limit.SystemMetrics{}
	}
	return limit.SystemMetrics{
		ErrorRate:       float64(errs) / float64(count),
		AvgResponseTime: time.Duration(totalMs/count) * time.Millisecond,
	}
}
