package postgres

import (
	"context"
	"errors"
	"fmt"

	"reading-adventure-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ProgressStore keeps progression counters in the progress table.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) LoadProgress(ctx context.Context, profileID string) (domain.ProgressionState, error) {
	var state domain.ProgressionState
	err := s.pool.QueryRow(ctx,
		`SELECT score, level, experience FROM progress WHERE profile_id=$1`, profileID,
	).Scan(&state.Score, &state.Level, &state.Experience)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ProgressionState{}, domain.ErrProgressNotFound
	}
	if err != nil {
		return domain.ProgressionState{}, fmt.Errorf("load progress: %w", err)
	}
	return state, nil
}

func (s *ProgressStore) SaveProgress(ctx context.Context, profileID string, state domain.ProgressionState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO progress (profile_id, score, level, experience, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (profile_id) DO UPDATE
		SET score=EXCLUDED.score, level=EXCLUDED.level, experience=EXCLUDED.experience, updated_at=EXCLUDED.updated_at`,
		profileID, state.Score, state.Level, state.Experience)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
