// Package store opens the SQLite database and owns its schema.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Open connects to the SQLite database at path, applies connection
// pragmas, and ensures the schema exists. The file is created on first
// use.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// modernc's driver serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent handlers.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates any missing tables and indexes. Statements are
// idempotent so the server can run it on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS members (
		email TEXT PRIMARY KEY,
		name TEXT,
		alias TEXT,
		picture TEXT,
		role TEXT NOT NULL DEFAULT 'member',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS games (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		submitted_by_email TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'backlog',
		poll_eligible INTEGER,
		cover_art_url TEXT,
		description TEXT,
		tags_json TEXT,
		time_to_beat_minutes INTEGER,
		current_price_cents INTEGER,
		best_price_cents INTEGER,
		steam_app_id INTEGER,
		itad_game_id TEXT,
		itad_slug TEXT,
		price_checked_at TIMESTAMP,
		played_month TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_games_status ON games(status)`,
	`CREATE INDEX IF NOT EXISTS idx_games_submitted_by ON games(submitted_by_email)`,
	`CREATE TABLE IF NOT EXISTS game_ratings (
		game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		member_email TEXT NOT NULL,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (game_id, member_email)
	)`,
	`CREATE TABLE IF NOT EXISTS game_favorites (
		game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		member_email TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (game_id, member_email)
	)`,
	`CREATE TABLE IF NOT EXISTS polls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		status TEXT NOT NULL DEFAULT 'active',
		history_valid INTEGER NOT NULL DEFAULT 1,
		started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		closed_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS poll_games (
		poll_id INTEGER NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		PRIMARY KEY (poll_id, game_id)
	)`,
	`CREATE TABLE IF NOT EXISTS poll_votes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		poll_id INTEGER NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		voter_email TEXT NOT NULL,
		choice_1 INTEGER NOT NULL REFERENCES games(id),
		choice_2 INTEGER REFERENCES games(id),
		choice_3 INTEGER REFERENCES games(id),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (poll_id, voter_email)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		actor_email TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT,
		before_json TEXT,
		after_json TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS site_settings (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}
