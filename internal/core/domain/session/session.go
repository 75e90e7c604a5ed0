package session

import (
	"time"

	"github.com/google/uuid"
)

// GameSession is one completed trivia run for a player.
type GameSession struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PlayerID   string    `db:"player_id" json:"playerId"`
	Score      int       `db:"score" json:"score"`
	Questions  int       `db:"questions" json:"questions"`
	Correct    int       `db:"correct" json:"correct"`
	DurationMs int64     `db:"duration_ms" json:"durationMs"`
	PlayedAt   time.Time `db:"played_at" json:"playedAt"`
}

// LeaderboardEntry is an aggregated ranking row.
type LeaderboardEntry struct {
	PlayerID  string `db:"player_id" json:"playerId"`
	BestScore int    `db:"best_score" json:"bestScore"`
	Sessions  int    `db:"sessions" json:"sessions"`
}
