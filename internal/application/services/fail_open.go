package services

import (
	"github.com/sirupsen/logrus"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
)

// failOpenDecision is the single store-error policy shared by all rate-limit
// strategies: a down store must never itself take the service down, so the
// request is admitted and the failure is only logged.
func failOpenDecision(logger *logrus.Logger, strategy, op, identifier string, limitVal int, err error) limit.Decision {
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"strategy":   strategy,
			"op":         op,
			"identifier": identifier,
		}).WithError(err).Warn("rate limiter store unavailable; allowing request (fail-open)")
	}
	return limit.Decision{Allowed: true, Remaining: limitVal, ResetIn: 0, Limit: limitVal}
}
