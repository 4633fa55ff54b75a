package memory

import (
	"context"
	"sync"

	"reading-adventure-service/internal/domain"
)

// ProgressStore keeps progression counters in a map; contents die with the process.
type ProgressStore struct {
	mu     sync.RWMutex
	states map[string]domain.ProgressionState
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{states: make(map[string]domain.ProgressionState)}
}

func (s *ProgressStore) LoadProgress(_ context.Context, profileID string) (domain.ProgressionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[profileID]
	if !ok {
		return domain.ProgressionState{}, domain.ErrProgressNotFound
	}
	return state, nil
}

func (s *ProgressStore) SaveProgress(_ context.Context, profileID string, state domain.ProgressionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[profileID] = state
	return nil
}
