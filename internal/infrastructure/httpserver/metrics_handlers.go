package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "The total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "The HTTP request latencies in seconds",
		},
		[]string{"method", "endpoint"},
	)

	rateLimitDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Rate limit decisions by outcome",
		},
		[]string{"outcome"},
	)

	sheddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "load_shed_rejections_total",
			Help: "Requests rejected by the load shedding gate",
		},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state per dependency (0=closed, 1=open, 2=half-open)",
		},
		[]string{"dependency"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(rateLimitDecisions)
	prometheus.MustRegister(sheddedTotal)
	prometheus.MustRegister(breakerState)
}

// GetRequestsTotal returns the requests total metric for middleware use
func GetRequestsTotal() *prometheus.CounterVec {
	return requestsTotal
}

// GetRequestDuration returns the request duration metric for middleware use
func GetRequestDuration() *prometheus.HistogramVec {
	return requestDuration
}

// GetRateLimitDecisions returns the rate limit decision counter for middleware use
func GetRateLimitDecisions() *prometheus.CounterVec {
	return rateLimitDecisions
}

// GetSheddedTotal returns the shed rejection counter for middleware use
func GetSheddedTotal() prometheus.Counter {
	return sheddedTotal
}

// publishBreakerStates refreshes the breaker state gauge from the registry.
func (s *Server) publishBreakerStates() {
	for _, name := range s.breakers.Names() {
		breakerState.WithLabelValues(name).Set(float64(s.breakers.Get(name).State()))
	}
}

// metricsEndpoint serves Prometheus metrics.
func (s *Server) metricsEndpoint(c echo.Context) error {
	s.publishBreakerStates()
	var handler http.Handler = promhttp.Handler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
