// Package sqlite provides a SQLite-backed progress store for single-machine deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"reading-adventure-service/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS progress (
	profile_id TEXT PRIMARY KEY,
	score      INTEGER NOT NULL DEFAULT 0,
	level      INTEGER NOT NULL DEFAULT 1,
	experience INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
)`

// ProgressStore persists progression counters in a local SQLite file.
type ProgressStore struct {
	sqlDB *sql.DB
}

// Open opens the database file and creates the schema if needed.
func Open(path string) (*ProgressStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &ProgressStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *ProgressStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *ProgressStore) LoadProgress(ctx context.Context, profileID string) (domain.ProgressionState, error) {
	var state domain.ProgressionState
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT score, level, experience FROM progress WHERE profile_id = ?`, profileID,
	).Scan(&state.Score, &state.Level, &state.Experience)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProgressionState{}, domain.ErrProgressNotFound
	}
	if err != nil {
		return domain.ProgressionState{}, fmt.Errorf("load progress: %w", err)
	}
	return state, nil
}

func (s *ProgressStore) SaveProgress(ctx context.Context, profileID string, state domain.ProgressionState) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO progress (profile_id, score, level, experience, updated_at)
		VALUES (?, ?, ?, ?, strftime('%s','now'))
		ON CONFLICT(profile_id) DO UPDATE SET
			score = excluded.score,
			level = excluded.level,
			experience = excluded.experience,
			updated_at = excluded.updated_at`,
		profileID, state.Score, state.Level, state.Experience)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
