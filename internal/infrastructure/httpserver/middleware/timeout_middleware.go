package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// TimeoutMiddleware aborts requests that outlive the configured duration
// with a gateway timeout. It cancels the request context, so handlers and
// any bulkhead/shedder bookkeeping they hold clean up through their normal
// defer paths.
type TimeoutMiddleware struct {
	timeout time.Duration
	logger  *logrus.Logger
}

func NewTimeoutMiddleware(timeout time.Duration, logger *logrus.Logger) *TimeoutMiddleware {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TimeoutMiddleware{timeout: timeout, logger: logger}
}

func (m *TimeoutMiddleware) Handler() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), m.timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil && errors.Is(err, context.DeadlineExceeded) {
				if m.logger != nil {
					m.logger.WithFields(logrus.Fields{"path": c.Path(), "timeout": m.timeout}).Warn("request exceeded timeout")
				}
				return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
			}
			return err
		}
	}
}
