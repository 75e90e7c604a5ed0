package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/journeymanlabs/trafficguard/internal/core/domain/session"
	"github.com/journeymanlabs/trafficguard/internal/infrastructure/db"
)

// SessionRepository persists game sessions in Postgres. It is the downstream
// dependency the circuit breaker and bulkhead protect in the default wiring.
type SessionRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

func NewSessionRepository(database *db.Database, logger *logrus.Logger) *SessionRepository {
	return &SessionRepository{db: database, logger: logger}
}

// RecordSession inserts one completed trivia run.
func (r *SessionRepository) RecordSession(ctx context.Context, s *session.GameSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.PlayedAt.IsZero() {
		s.PlayedAt = time.Now().UTC()
	}
	query := `INSERT INTO game_sessions (id, player_id, score, questions, correct, duration_ms, played_at)
	          VALUES (:id, :player_id, :score, :questions, :correct, :duration_ms, :played_at)`
	if _, err := r.db.DB.NamedExecContext(ctx, query, s); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).WithField("player_id", s.PlayerID).Error("failed to record game session")
		}
		return fmt.Errorf("failed to record game session: %w", err)
	}
	return nil
}

// Leaderboard returns the top players by best score.
func (r *SessionRepository) Leaderboard(ctx context.Context, topN int) ([]session.LeaderboardEntry, error) {
	if topN <= 0 {
		topN = 10
	}
	query := `SELECT player_id, MAX(score) AS best_score, COUNT(*) AS sessions
	          FROM game_sessions GROUP BY player_id ORDER BY best_score DESC LIMIT $1`
	var entries []session.LeaderboardEntry
	if err := r.db.DB.SelectContext(ctx, &entries, query, topN); err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return entries, nil
}
