package models

import (
	"database/sql"
	"time"
)

// LeaderboardEntry is one player's best score in a game mode.
type LeaderboardEntry struct {
	ID        int       `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Username  string    `db:"username" json:"username"`
	BestScore int       `db:"best_score" json:"bestScore"`
	GameMode  string    `db:"game_mode" json:"gameMode"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// MatchRecord is the final result of one finished session.
type MatchRecord struct {
	ID           int            `db:"id" json:"id"`
	SessionToken string         `db:"session_token" json:"sessionToken"`
	GameMode     string         `db:"game_mode" json:"gameMode"`
	Player1ID    sql.NullString `db:"player1_id" json:"player1Id,omitempty"`
	Player2ID    sql.NullString `db:"player2_id" json:"player2Id,omitempty"`
	Score1       int            `db:"score1" json:"score1"`
	Score2       int            `db:"score2" json:"score2"`
	Points1      int            `db:"points1" json:"points1"`
	Points2      int            `db:"points2" json:"points2"`
	Winner       string         `db:"winner" json:"winner"`
	WorldVersion int64          `db:"world_version" json:"worldVersion"`
	StartedAt    time.Time      `db:"started_at" json:"startedAt"`
	EndedAt      time.Time      `db:"ended_at" json:"endedAt"`
}
