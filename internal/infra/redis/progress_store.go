package redis

import (
	"context"
	"fmt"
	"strconv"

	"reading-adventure-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ProgressStore keeps progression counters in a hash per profile:
// HSET progress:{profileID} score {n} level {n} experience {n}
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func (s *ProgressStore) LoadProgress(ctx context.Context, profileID string) (domain.ProgressionState, error) {
	fields, err := s.client.HGetAll(ctx, s.key(profileID)).Result()
	if err != nil {
		return domain.ProgressionState{}, fmt.Errorf("load progress: %w", err)
	}
	if len(fields) == 0 {
		return domain.ProgressionState{}, domain.ErrProgressNotFound
	}

	var state domain.ProgressionState
	for name, target := range map[string]*int{
		"score":      &state.Score,
		"level":      &state.Level,
		"experience": &state.Experience,
	} {
		v, err := strconv.Atoi(fields[name])
		if err != nil {
			return domain.ProgressionState{}, fmt.Errorf("load progress: field %s: %w", name, err)
		}
		*target = v
	}
	return state, nil
}

func (s *ProgressStore) SaveProgress(ctx context.Context, profileID string, state domain.ProgressionState) error {
	err := s.client.HSet(ctx, s.key(profileID),
		"score", state.Score,
		"level", state.Level,
		"experience", state.Experience,
	).Err()
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *ProgressStore) key(profileID string) string {
	return "progress:" + profileID
}
