package httpserver

import (
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(s.middleware.Metrics.CollectHTTPMetrics())
	s.echo.Use(s.middleware.Logging.RequestLogging())

	// Admission order: shed gate first, then per-identifier throttle, then
	// the request timeout guard around the handlers.
	s.echo.Use(s.middleware.LoadShed.Handler())
	s.echo.Use(s.middleware.RateLimit.Handler())
	s.echo.Use(s.middleware.Timeout.Handler())
}
