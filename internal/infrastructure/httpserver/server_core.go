package httpserver

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/journeymanlabs/trafficguard/internal/application/services"
	"github.com/journeymanlabs/trafficguard/internal/core/domain/session"
	"github.com/journeymanlabs/trafficguard/internal/core/ports"
	customMiddleware "github.com/journeymanlabs/trafficguard/internal/infrastructure/httpserver/middleware"
)

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

type ServerDeps struct {
	Strategy        ports.RateLimitStrategy
	Shedder         *services.LoadShedder
	Breakers        *services.BreakerRegistry
	Bulkheads       *services.BulkheadRegistry
	SessionRecorder ports.SessionRecorder
	Identifier      customMiddleware.IdentifierFunc
	Priority        customMiddleware.PriorityFunc
	HealthCheckers  []ports.HealthChecker
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	breakers       *services.BreakerRegistry
	bulkheads      *services.BulkheadRegistry
	recorder       ports.SessionRecorder
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker

	// last leaderboard successfully read; served by the breaker fallback
	leaderboardMu    sync.Mutex
	leaderboardCache []session.LeaderboardEntry
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		breakers:       deps.Breakers,
		bulkheads:      deps.Bulkheads,
		recorder:       deps.SessionRecorder,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			deps.Strategy,
			deps.Shedder,
			deps.Identifier,
			deps.Priority,
			serverConfig.RequestTimeout,
			logger,
			GetRequestsTotal(),
			GetRequestDuration(),
			GetRateLimitDecisions(),
			GetSheddedTotal(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// Metrics returns the metrics middleware so the composition root can wire
// its rolling counters into the adaptive limiter's sampler.
func (s *Server) Metrics() *customMiddleware.MetricsMiddleware {
	return s.middleware.Metrics
}
