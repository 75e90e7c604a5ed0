package middleware

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
	"github.com/journeymanlabs/trafficguard/internal/core/ports"
)

// IdentifierFunc extracts the rate-limit identifier from a request. The
// engine does not own identification; by default the client IP is used.
type IdentifierFunc func(c echo.Context) string

type RateLimitMiddleware struct {
	strategy   ports.RateLimitStrategy
	identifier IdentifierFunc
	decisions  *prometheus.CounterVec
	logger     *logrus.Logger
}

func NewRateLimitMiddleware(strategy ports.RateLimitStrategy, identifier IdentifierFunc, decisions *prometheus.CounterVec, logger *logrus.Logger) *RateLimitMiddleware {
	if identifier == nil {
		identifier = func(c echo.Context) string { return c.RealIP() }
	}
	return &RateLimitMiddleware{strategy: strategy, identifier: identifier, decisions: decisions, logger: logger}
}

func (r *RateLimitMiddleware) Handler() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identifier := r.identifier(c)
			decision, err := r.strategy.Allow(c.Request().Context(), identifier)
			if err != nil {
				// Strategies fail open internally; any error here is a
				// programming error and should be loud in development.
				if r.logger != nil {
					r.logger.WithError(err).WithField("identifier", identifier).Error("rate limit strategy failed")
				}
				return next(c)
			}

			retryAfter := int(math.Ceil(decision.ResetIn.Seconds()))

			// Set standard rate limit headers on every response
			c.Response().Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
			c.Response().Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(decision.ResetIn).Unix()))

			if !decision.Allowed {
				rlErr := &limit.RateLimitExceededError{RetryAfter: decision.ResetIn, Limit: decision.Limit}
				if r.decisions != nil {
					r.decisions.WithLabelValues("rejected").Inc()
				}
				if r.logger != nil {
					r.logger.WithFields(logrus.Fields{"identifier": identifier, "limit": rlErr.Limit}).Info(rlErr.Error())
				}
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":      "Too Many Requests",
					"message":    rlErr.Error(),
					"retryAfter": retryAfter,
					"limit":      rlErr.Limit,
				})
			}

			if r.decisions != nil {
				r.decisions.WithLabelValues("allowed").Inc()
			}
			return next(c)
		}
	}
}
