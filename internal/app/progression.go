package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"reading-adventure-service/internal/domain"
)

// ProgressStore persists progression counters per profile (in-memory, SQLite, Redis, Postgres).
type ProgressStore interface {
	// LoadProgress returns domain.ErrProgressNotFound for profiles that were never saved.
	LoadProgress(ctx context.Context, profileID string) (domain.ProgressionState, error)
	SaveProgress(ctx context.Context, profileID string, state domain.ProgressionState) error
}

// Status tells whether a Progression still holds provisional defaults.
type Status int

const (
	StatusCreated Status = iota
	StatusHydrated
)

func (s Status) String() string {
	if s == StatusHydrated {
		return "hydrated"
	}
	return "created"
}

const saveTimeout = 5 * time.Second

// ExperienceRequired is the experience needed to leave the given level.
func ExperienceRequired(level int) int {
	return level * domain.ExperiencePerLevel
}

// AwardResult reports the state reached by an award.
type AwardResult struct {
	State        domain.ProgressionState
	LevelsGained int
}

// Progression owns the score, level and experience of one profile.
// It starts with defaults and becomes authoritative once hydrated from its store.
type Progression struct {
	profileID string
	store     ProgressStore

	mu          sync.RWMutex
	state       domain.ProgressionState
	status      Status
	provisional int // points awarded before hydration, replayed on top of the stored state
	version     uint64
	subscribers map[chan domain.ProgressView]struct{}

	persistMu sync.Mutex
	written   uint64
	pending   sync.WaitGroup
}

// NewProgression creates a progression in the created state. A nil store disables persistence.
func NewProgression(profileID string, store ProgressStore) *Progression {
	return &Progression{
		profileID:   profileID,
		store:       store,
		state:       domain.DefaultProgression(),
		status:      StatusCreated,
		subscribers: make(map[chan domain.ProgressView]struct{}),
	}
}

// ProfileID returns the profile this progression belongs to.
func (p *Progression) ProfileID() string {
	return p.profileID
}

// Status reports the lifecycle phase.
func (p *Progression) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// State returns a copy of the counters.
func (p *Progression) State() domain.ProgressionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// View returns the display values for the current state.
func (p *Progression) View() domain.ProgressView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.viewLocked()
}

// Hydrate loads the stored state once. A load error leaves the progression
// provisional so a later call can retry.
func (p *Progression) Hydrate(ctx context.Context) error {
	p.mu.RLock()
	hydrated := p.status == StatusHydrated
	p.mu.RUnlock()
	if hydrated {
		return nil
	}

	loaded := domain.DefaultProgression()
	if p.store != nil {
		stored, err := p.store.LoadProgress(ctx, p.profileID)
		switch {
		case err == nil:
			loaded = normalize(stored)
		case errors.Is(err, domain.ErrProgressNotFound):
		default:
			return fmt.Errorf("hydrate progress %s: %w", p.profileID, err)
		}
	}

	p.mu.Lock()
	if p.status == StatusHydrated {
		p.mu.Unlock()
		return nil
	}
	replay := p.provisional
	p.state, _ = applyPoints(loaded, replay)
	p.status = StatusHydrated
	p.provisional = 0
	p.version++
	version, state := p.version, p.state
	p.broadcastLocked()
	p.mu.Unlock()

	if replay > 0 {
		p.persistAsync(version, state)
	}
	return nil
}

// AwardPoints adds points to score and experience, carrying experience over
// as many level thresholds as it crosses. Negative points are rejected.
func (p *Progression) AwardPoints(points int) (AwardResult, error) {
	if points < 0 {
		return AwardResult{}, domain.ErrNegativePoints
	}

	p.mu.Lock()
	next, gained := applyPoints(p.state, points)
	p.state = next
	p.version++
	version := p.version
	hydrated := p.status == StatusHydrated
	if !hydrated {
		p.provisional += points
	}
	p.broadcastLocked()
	p.mu.Unlock()

	// Provisional state must not overwrite what the store already holds.
	if hydrated {
		p.persistAsync(version, next)
	}
	return AwardResult{State: next, LevelsGained: gained}, nil
}

// Wait blocks until every pending persistence write has finished.
func (p *Progression) Wait() {
	p.pending.Wait()
}

// Subscribe returns a channel of progress views, primed with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (p *Progression) Subscribe() (<-chan domain.ProgressView, func()) {
	ch := make(chan domain.ProgressView, 8)

	// The buffer is empty, so queueing the initial view under the lock cannot
	// block, and no broadcast can slip in ahead of it.
	p.mu.Lock()
	ch <- p.viewLocked()
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if _, ok := p.subscribers[ch]; ok {
			delete(p.subscribers, ch)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

func (p *Progression) persistAsync(version uint64, state domain.ProgressionState) {
	if p.store == nil {
		return
	}
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()

		p.persistMu.Lock()
		defer p.persistMu.Unlock()
		if version <= p.written {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := p.store.SaveProgress(ctx, p.profileID, state); err != nil {
			log.Printf("persist progress for %s failed: %v", p.profileID, err)
			return
		}
		p.written = version
	}()
}

func (p *Progression) broadcastLocked() {
	view := p.viewLocked()
	for ch := range p.subscribers {
		select {
		case ch <- view:
		default:
			// Drop the stale view so a slow reader never blocks an award.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- view:
			default:
			}
		}
	}
}

func (p *Progression) viewLocked() domain.ProgressView {
	required := ExperienceRequired(p.state.Level)
	return domain.ProgressView{
		Score:              p.state.Score,
		Level:              p.state.Level,
		Experience:         p.state.Experience,
		ExperienceRequired: required,
		Percent:            p.state.Experience * 100 / required,
		Hydrated:           p.status == StatusHydrated,
	}
}

func applyPoints(state domain.ProgressionState, points int) (domain.ProgressionState, int) {
	experience := state.Experience + points
	level := state.Level
	gained := 0
	for experience >= ExperienceRequired(level) {
		experience -= ExperienceRequired(level)
		level++
		gained++
	}
	return domain.ProgressionState{
		Score:      state.Score + points,
		Level:      level,
		Experience: experience,
	}, gained
}

// normalize repairs stored counters that break the progression invariants.
func normalize(state domain.ProgressionState) domain.ProgressionState {
	if state.Level < 1 {
		state.Level = 1
	}
	if state.Score < 0 {
		state.Score = 0
	}
	if state.Experience < 0 {
		state.Experience = 0
	}
	carried, _ := applyPoints(domain.ProgressionState{Level: state.Level}, state.Experience)
	carried.Score = state.Score
	return carried
}
