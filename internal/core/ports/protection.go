package ports

import (
	"context"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
	"github.com/journeymanlabs/trafficguard/internal/core/domain/session"
)

// RateLimitStrategy answers whether an identifier may proceed right now and,
// if not, when it can retry. Implementations encapsulate algorithm and
// storage and MUST be safe for concurrent use. Store failures never surface:
// strategies fail open and report the error via logs only.
type RateLimitStrategy interface {
	// Allow consumes one request unit for the identifier.
	Allow(ctx context.Context, identifier string) (limit.Decision, error)
}

// MetricsSink receives externally computed load signals. Implemented by the
// adaptive limiter; fed by whatever component observes the system (the HTTP
// metrics middleware in the default wiring).
type MetricsSink interface {
	UpdateMetrics(m limit.SystemMetrics)
}

// Guard wraps an outbound operation with a protection policy (circuit
// breaker, bulkhead, or a composition of both).
type Guard interface {
	Execute(ctx context.Context, op func(ctx context.Context) error) error
}

// SessionRecorder is the downstream dependency the demo routes protect:
// writes game sessions and reads the leaderboard from Postgres.
type SessionRecorder interface {
	RecordSession(ctx context.Context, s *session.GameSession) error
	Leaderboard(ctx context.Context, topN int) ([]session.LeaderboardEntry, error)
}
