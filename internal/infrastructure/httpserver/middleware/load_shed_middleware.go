package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/journeymanlabs/trafficguard/internal/application/services"
)

// PriorityFunc ranks a request for the load shedder; higher survives longer
// under overload.
type PriorityFunc func(c echo.Context) int

type LoadShedMiddleware struct {
	shedder  *services.LoadShedder
	priority PriorityFunc
	shedded  prometheus.Counter
	logger   *logrus.Logger
}

func NewLoadShedMiddleware(shedder *services.LoadShedder, priority PriorityFunc, shedded prometheus.Counter, logger *logrus.Logger) *LoadShedMiddleware {
	if priority == nil {
		// Health and metrics probes outrank player traffic.
		priority = func(c echo.Context) int {
			switch c.Path() {
			case "/health", "/metrics":
				return 9
			default:
				return 1
			}
		}
	}
	return &LoadShedMiddleware{shedder: shedder, priority: priority, shedded: shedded, logger: logger}
}

func (m *LoadShedMiddleware) Handler() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			release, admitted := m.shedder.Admit(m.priority(c))
			if !admitted {
				if m.shedded != nil {
					m.shedded.Inc()
				}
				return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
					"error":      "Service Overloaded",
					"retryAfter": 30,
				})
			}
			// Release on every exit path, including panics unwound by the
			// recover middleware above this one.
			defer release()
			return next(c)
		}
	}
}
