package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const connectAttempts = 5

// Connect establishes a connection to PostgreSQL, retrying while the server
// comes up.
func Connect(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
		if err == nil {
			// Configure connection pool
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
			db.SetConnMaxIdleTime(5 * time.Minute)
			return db, nil
		}
		lastErr = err
		log.Printf("[DB] connect attempt %d/%d failed: %v", attempt, connectAttempts, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, fmt.Errorf("connect to postgres: %w", lastErr)
}
