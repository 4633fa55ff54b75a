package memory

import (
	"sync"

	"reading-adventure-service/internal/app"
)

// ProfileStore is an in-memory implementation of app.ProfileRepository.
// Every progression it creates persists through the same ProgressStore.
type ProfileStore struct {
	store app.ProgressStore

	mu       sync.Mutex
	profiles map[string]*app.Progression
}

func NewProfileStore(store app.ProgressStore) *ProfileStore {
	return &ProfileStore{
		store:    store,
		profiles: make(map[string]*app.Progression),
	}
}

func (s *ProfileStore) GetOrCreate(profileID string) *app.Progression {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[profileID]; ok {
		return p
	}
	p := app.NewProgression(profileID, s.store)
	s.profiles[profileID] = p
	return p
}

func (s *ProfileStore) List() []*app.Progression {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*app.Progression, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out
}
