package httpserver

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/journeymanlabs/trafficguard/internal/application/services"
	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
	"github.com/journeymanlabs/trafficguard/internal/core/domain/session"
	"github.com/journeymanlabs/trafficguard/internal/core/ports"
)

// postgresDependency names the breaker/bulkhead guarding the session store.
const postgresDependency = "postgres"

var (
	_ ports.Guard = (*services.CircuitBreaker)(nil)
	_ ports.Guard = (*services.Bulkhead)(nil)
)

// guardFunc adapts a protection composition to ports.Guard.
type guardFunc func(ctx context.Context, op func(ctx context.Context) error) error

func (f guardFunc) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	return f(ctx, op)
}

// postgresGuard nests the session store's bulkhead inside its breaker, so
// slot rejections under sustained saturation count as dependency failures.
func (s *Server) postgresGuard() ports.Guard {
	breaker := s.breakers.Get(postgresDependency)
	bulkhead := s.bulkheads.Get(postgresDependency)
	return guardFunc(func(ctx context.Context, op func(ctx context.Context) error) error {
		return breaker.Execute(ctx, func(ctx context.Context) error {
			return bulkhead.Execute(ctx, op)
		})
	})
}

type recordSessionRequest struct {
	PlayerID   string `json:"playerId"`
	Score      int    `json:"score"`
	Questions  int    `json:"questions"`
	Correct    int    `json:"correct"`
	DurationMs int64  `json:"durationMs"`
}

// recordSession writes a game session through the full protection stack:
// bulkhead caps concurrent writes, the breaker fail-fasts when Postgres is
// down, and transient failures are retried with backoff inside both.
func (s *Server) recordSession(c echo.Context) error {
	var req recordSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.PlayerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "playerId is required")
	}

	gs := &session.GameSession{
		PlayerID:   req.PlayerID,
		Score:      req.Score,
		Questions:  req.Questions,
		Correct:    req.Correct,
		DurationMs: req.DurationMs,
	}

	err := s.postgresGuard().Execute(c.Request().Context(), func(ctx context.Context) error {
		return services.Retry(ctx, services.RetryConfig{
			MaxRetries:   2,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
		}, func(ctx context.Context) error {
			return s.recorder.RecordSession(ctx, gs)
		})
	})
	if err != nil {
		return s.mapGuardError(c, err)
	}

	return c.JSON(http.StatusCreated, gs)
}

// getLeaderboard reads through the same breaker; when Postgres is known-bad
// the fallback serves the last leaderboard this process saw.
func (s *Server) getLeaderboard(c echo.Context) error {
	topN, _ := strconv.Atoi(c.QueryParam("top"))

	var entries []session.LeaderboardEntry
	breaker := s.breakers.Get(postgresDependency)

	err := breaker.ExecuteWithFallback(c.Request().Context(),
		func(ctx context.Context) error {
			result, err := s.recorder.Leaderboard(ctx, topN)
			if err != nil {
				return err
			}
			entries = result
			s.leaderboardMu.Lock()
			s.leaderboardCache = result
			s.leaderboardMu.Unlock()
			return nil
		},
		func(ctx context.Context) error {
			s.leaderboardMu.Lock()
			entries = s.leaderboardCache
			s.leaderboardMu.Unlock()
			c.Response().Header().Set("X-Leaderboard-Stale", "true")
			return nil
		})
	if err != nil {
		return s.mapGuardError(c, err)
	}

	return c.JSON(http.StatusOK, entries)
}

// mapGuardError converts protection-layer failures to their HTTP signals.
// The wrapped operation's own errors surface as a plain 500 with no detail.
func (s *Server) mapGuardError(c echo.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		// Surface context errors unwrapped so the timeout guard upstream can
		// answer with its own status.
		return err
	}
	var open *limit.CircuitOpenError
	if errors.As(err, &open) {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"error":      "Service Unavailable",
			"retryAfter": int(math.Ceil(open.RetryAfter.Seconds())),
		})
	}
	var full *limit.BulkheadFullError
	if errors.As(err, &full) {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"error":      "Service Unavailable",
			"retryAfter": 5,
		})
	}
	if s.logger != nil {
		s.logger.WithError(err).Error("downstream operation failed")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
