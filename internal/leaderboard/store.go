package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/swingpong/backend/internal/models"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Match is the final result of a session, recorded when it ends.
type Match struct {
	SessionToken string
	GameMode     string
	Player1ID    string
	Player2ID    string
	Score1       int
	Score2       int
	Points1      int
	Points2      int
	Winner       string
	WorldVersion uint64
	StartedAt    time.Time
	EndedAt      time.Time
}

// Store persists leaderboard entries and match records in Postgres.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

var errNoDB = errors.New("leaderboard store not configured")

// Submit keeps the higher of the stored and submitted score for a player.
func (s *Store) Submit(ctx context.Context, e Entry) error {
	if s == nil {
		return errNoDB
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if e.GameMode == "" {
		e.GameMode = "classic"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leaderboard_entries (user_id, username, best_score, game_mode)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, game_mode) DO UPDATE
		SET best_score = GREATEST(leaderboard_entries.best_score, EXCLUDED.best_score),
		    username = EXCLUDED.username,
		    updated_at = NOW()`,
		e.UserID, e.Username, e.BestScore, e.GameMode)
	return err
}

// Top returns the best entries for mode, highest score first.
func (s *Store) Top(ctx context.Context, mode string, limit int) ([]models.LeaderboardEntry, error) {
	if s == nil {
		return nil, errNoDB
	}
	limit = ClampLimit(limit)
	entries := []models.LeaderboardEntry{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, username, best_score, game_mode, created_at, updated_at
		FROM leaderboard_entries
		WHERE game_mode = $1
		ORDER BY best_score DESC, updated_at ASC
		LIMIT $2`, mode, limit)
	return entries, err
}

// RecordMatch stores the final result of a session.
func (s *Store) RecordMatch(ctx context.Context, m Match) error {
	if s == nil {
		return errNoDB
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO match_records
			(session_token, game_mode, player1_id, player2_id, score1, score2,
			 points1, points2, winner, world_version, started_at, ended_at)
		VALUES
			(:session_token, :game_mode, :player1_id, :player2_id, :score1, :score2,
			 :points1, :points2, :winner, :world_version, :started_at, :ended_at)`,
		matchRecord(m))
	return err
}

// Matches lists the recorded results for a session token, newest first.
func (s *Store) Matches(ctx context.Context, token string) ([]models.MatchRecord, error) {
	if s == nil {
		return nil, errNoDB
	}
	var out []models.MatchRecord
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM match_records WHERE session_token = $1 ORDER BY ended_at DESC`, token)
	return out, err
}

func matchRecord(m Match) models.MatchRecord {
	ended := m.EndedAt
	if ended.IsZero() {
		ended = time.Now()
	}
	return models.MatchRecord{
		SessionToken: m.SessionToken,
		GameMode:     m.GameMode,
		Player1ID:    nullString(m.Player1ID),
		Player2ID:    nullString(m.Player2ID),
		Score1:       m.Score1,
		Score2:       m.Score2,
		Points1:      m.Points1,
		Points2:      m.Points2,
		Winner:       m.Winner,
		WorldVersion: int64(m.WorldVersion),
		StartedAt:    m.StartedAt,
		EndedAt:      ended,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ClampLimit bounds a requested page size.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}
