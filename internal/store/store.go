// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store is the SQLite-backed persistence layer: settings,
// schedule windows, devices, rules, decision records, the verdict cache
// and the sponsor-action log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Config controls the SQLite connection pool.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the pool settings used outside of tests.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 8,
	}
}

// Store wraps a SQLite database handle and exposes the domain's
// persistence operations.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and migrates the database at dbPath, returning
// a ready-to-use Store. WAL mode and a busy timeout are applied to every
// pooled connection through the DSN so they hold regardless of which
// connection database/sql hands out.
func Open(dbPath string, cfg Config) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds(),
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schedules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL DEFAULT '',
	enabled INTEGER NOT NULL DEFAULT 1,
	start TEXT NOT NULL,
	end TEXT NOT NULL,
	timezone TEXT NOT NULL,
	mode TEXT NOT NULL DEFAULT 'blocklist',
	created_at TEXT,
	updated_at TEXT
);

CREATE TABLE IF NOT EXISTS devices (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	screen_id TEXT UNIQUE,
	lounge_token TEXT,
	auth_state_json TEXT,
	status TEXT DEFAULT 'offline',
	last_seen_at TEXT,
	last_error TEXT
);

CREATE TABLE IF NOT EXISTS video_decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER,
	video_id TEXT,
	channel_id TEXT,
	title TEXT,
	thumbnail_url TEXT,
	verdict TEXT,
	reason TEXT,
	confidence INTEGER,
	source TEXT,
	action_taken TEXT,
	created_at TEXT
);

CREATE TABLE IF NOT EXISTS rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	rule_type TEXT,
	scope TEXT,
	value TEXT,
	label TEXT DEFAULT '',
	url TEXT DEFAULT '',
	source_list TEXT DEFAULT 'manual',
	created_at TEXT
);

CREATE TABLE IF NOT EXISTS analysis_cache (
	key TEXT PRIMARY KEY,
	payload_json TEXT,
	expires_at TEXT
);

CREATE TABLE IF NOT EXISTS sponsorblock_actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER,
	video_id TEXT,
	title TEXT,
	category TEXT,
	segment_start REAL,
	segment_end REAL,
	action_taken TEXT,
	status TEXT,
	error TEXT,
	created_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_rules_scope_value ON rules(scope, value);
CREATE INDEX IF NOT EXISTS idx_rules_type_scope ON rules(rule_type, scope);
CREATE INDEX IF NOT EXISTS idx_schedules_enabled_id ON schedules(enabled, id);
CREATE INDEX IF NOT EXISTS idx_video_decisions_created ON video_decisions(id DESC);
CREATE INDEX IF NOT EXISTS idx_video_decisions_verdict ON video_decisions(verdict, id DESC);
CREATE INDEX IF NOT EXISTS idx_sponsorblock_actions_created ON sponsorblock_actions(id DESC);
`

// migrate applies the schema and bumps PRAGMA user_version. The schema is
// additive-only (IF NOT EXISTS / ALTER ADD COLUMN), so a version bump only
// ever needs to append, never to drop and recreate.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("store: migrate schema: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("store: read user_version: %w", err)
	}
	if current < schemaVersion {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("store: write user_version: %w", err)
		}
	}
	return nil
}

func utcNowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
