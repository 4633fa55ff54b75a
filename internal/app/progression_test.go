package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reading-adventure-service/internal/app"
	"reading-adventure-service/internal/domain"
)

func TestAwardPointsLevelsUpAtThreshold(t *testing.T) {
	p := hydratedProgression(t, newFakeStore())

	res, err := p.AwardPoints(100)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	want := domain.ProgressionState{Score: 100, Level: 2, Experience: 0}
	if res.State != want || res.LevelsGained != 1 {
		t.Fatalf("expected %+v with 1 level gained, got %+v", want, res)
	}
}

func TestAwardPointsBelowThresholdKeepsLevel(t *testing.T) {
	store := newFakeStore()
	store.states["kid-1"] = domain.ProgressionState{Score: 50, Level: 1, Experience: 50}
	p := hydratedProgression(t, store)

	res, err := p.AwardPoints(30)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	want := domain.ProgressionState{Score: 80, Level: 1, Experience: 80}
	if res.State != want || res.LevelsGained != 0 {
		t.Fatalf("expected %+v, got %+v", want, res)
	}
}

func TestAwardPointsCarriesAcrossSeveralLevels(t *testing.T) {
	p := hydratedProgression(t, newFakeStore())

	// 350 = 100 (level 1) + 200 (level 2) + 50 left on level 3.
	res, err := p.AwardPoints(350)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	want := domain.ProgressionState{Score: 350, Level: 3, Experience: 50}
	if res.State != want || res.LevelsGained != 2 {
		t.Fatalf("expected %+v with 2 levels gained, got %+v", want, res)
	}
}

func TestAwardPointsRejectsNegative(t *testing.T) {
	p := hydratedProgression(t, newFakeStore())
	if _, err := p.AwardPoints(40); err != nil {
		t.Fatalf("award: %v", err)
	}

	if _, err := p.AwardPoints(-10); !errors.Is(err, domain.ErrNegativePoints) {
		t.Fatalf("expected ErrNegativePoints, got %v", err)
	}
	if got := p.State(); got.Score != 40 || got.Experience != 40 {
		t.Fatalf("expected state untouched, got %+v", got)
	}
}

func TestSplitAwardsMatchSingleAward(t *testing.T) {
	amounts := []int{0, 1, 30, 50, 99, 100, 101, 150, 250, 300, 777}
	for _, p1 := range amounts {
		for _, p2 := range amounts {
			split := app.NewProgression("split", nil)
			_, _ = split.AwardPoints(p1)
			_, _ = split.AwardPoints(p2)

			single := app.NewProgression("single", nil)
			_, _ = single.AwardPoints(p1 + p2)

			if split.State() != single.State() {
				t.Fatalf("award(%d)+award(%d) = %+v, award(%d) = %+v", p1, p2, split.State(), p1+p2, single.State())
			}
		}
	}
}

func TestAwardInvariantsHoldAfterEveryAward(t *testing.T) {
	p := app.NewProgression("kid-1", nil)
	total := 0
	for _, points := range []int{0, 5, 100, 33, 250, 1, 999, 67, 400} {
		if _, err := p.AwardPoints(points); err != nil {
			t.Fatalf("award %d: %v", points, err)
		}
		total += points

		state := p.State()
		if state.Experience < 0 || state.Experience >= app.ExperienceRequired(state.Level) {
			t.Fatalf("experience %d out of range for level %d", state.Experience, state.Level)
		}
		if state.Score != total {
			t.Fatalf("expected score %d, got %d", total, state.Score)
		}
	}
}

func TestExperienceRequired(t *testing.T) {
	for level, want := range map[int]int{1: 100, 2: 200, 7: 700} {
		if got := app.ExperienceRequired(level); got != want {
			t.Fatalf("level %d: expected %d, got %d", level, want, got)
		}
	}
}

func TestHydrateLoadsStoredState(t *testing.T) {
	store := newFakeStore()
	store.states["kid-1"] = domain.ProgressionState{Score: 420, Level: 3, Experience: 120}
	p := app.NewProgression("kid-1", store)

	if p.Status() != app.StatusCreated || p.View().Hydrated {
		t.Fatalf("expected new progression to be provisional")
	}
	if err := p.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if p.Status() != app.StatusHydrated {
		t.Fatalf("expected hydrated status")
	}
	view := p.View()
	if view.Score != 420 || view.Level != 3 || view.ExperienceRequired != 300 || view.Percent != 40 || !view.Hydrated {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestHydrateRepairsBrokenStoredState(t *testing.T) {
	store := newFakeStore()
	store.states["kid-1"] = domain.ProgressionState{Score: -5, Level: 0, Experience: 130}
	p := hydratedProgression(t, store)

	want := domain.ProgressionState{Score: 0, Level: 2, Experience: 30}
	if got := p.State(); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestHydrateReplaysProvisionalAwards(t *testing.T) {
	store := newFakeStore()
	store.states["kid-1"] = domain.ProgressionState{Score: 90, Level: 1, Experience: 90}
	p := app.NewProgression("kid-1", store)

	if _, err := p.AwardPoints(20); err != nil {
		t.Fatalf("award: %v", err)
	}
	p.Wait()
	if store.saves() != 0 {
		t.Fatalf("provisional state must not be persisted, saw %d saves", store.saves())
	}

	if err := p.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	p.Wait()

	want := domain.ProgressionState{Score: 110, Level: 2, Experience: 10}
	if got := p.State(); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if got := store.get("kid-1"); got != want {
		t.Fatalf("expected replayed state persisted, got %+v", got)
	}
}

func TestHydrateFailureKeepsProgressionProvisional(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("disk on fire")
	p := app.NewProgression("kid-1", store)

	if err := p.Hydrate(context.Background()); err == nil {
		t.Fatalf("expected hydrate error")
	}
	if p.Status() != app.StatusCreated {
		t.Fatalf("expected progression to stay provisional")
	}

	store.loadErr = nil
	if err := p.Hydrate(context.Background()); err != nil {
		t.Fatalf("retry hydrate: %v", err)
	}
	if p.Status() != app.StatusHydrated {
		t.Fatalf("expected hydrated after retry")
	}
}

func TestAwardPersistsAfterHydration(t *testing.T) {
	store := newFakeStore()
	p := hydratedProgression(t, store)

	_, _ = p.AwardPoints(60)
	_, _ = p.AwardPoints(70)
	p.Wait()

	want := domain.ProgressionState{Score: 130, Level: 2, Experience: 30}
	if got := store.get("kid-1"); got != want {
		t.Fatalf("expected latest state persisted, got %+v", got)
	}
}

func TestPersistFailureDoesNotFailAward(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("connection refused")
	p := hydratedProgression(t, store)

	res, err := p.AwardPoints(100)
	if err != nil {
		t.Fatalf("expected award to succeed despite store failure, got %v", err)
	}
	p.Wait()
	if res.State.Level != 2 || p.State().Level != 2 {
		t.Fatalf("expected in-memory state to stay authoritative, got %+v", p.State())
	}
}

func TestSubscribeReceivesAwards(t *testing.T) {
	p := hydratedProgression(t, newFakeStore())
	ch, cancel := p.Subscribe()
	defer cancel()

	<-ch // initial view

	_, _ = p.AwardPoints(150)
	select {
	case view := <-ch:
		if view.Level != 2 || view.Experience != 50 || view.Score != 150 {
			t.Fatalf("unexpected view %+v", view)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected progress update")
	}
}

func TestSubscribeNeverEndsOnStaleView(t *testing.T) {
	for round := 0; round < 50; round++ {
		p := hydratedProgression(t, newFakeStore())
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_, _ = p.AwardPoints(10)
			}
		}()
		ch, cancel := p.Subscribe()
		wg.Wait()

		var last domain.ProgressView
		for drained := false; !drained; {
			select {
			case view := <-ch:
				last = view
			default:
				drained = true
			}
		}
		cancel()
		p.Wait()
		if want := p.View(); last != want {
			t.Fatalf("round %d: expected last view %+v, got %+v", round, want, last)
		}
	}
}

func hydratedProgression(t *testing.T, store *fakeStore) *app.Progression {
	t.Helper()
	p := app.NewProgression("kid-1", store)
	if err := p.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	return p
}

type fakeStore struct {
	mu        sync.Mutex
	states    map[string]domain.ProgressionState
	saveCount int
	loadErr   error
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: make(map[string]domain.ProgressionState)}
}

func (s *fakeStore) LoadProgress(_ context.Context, profileID string) (domain.ProgressionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return domain.ProgressionState{}, s.loadErr
	}
	state, ok := s.states[profileID]
	if !ok {
		return domain.ProgressionState{}, domain.ErrProgressNotFound
	}
	return state, nil
}

func (s *fakeStore) SaveProgress(_ context.Context, profileID string, state domain.ProgressionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saveCount++
	s.states[profileID] = state
	return nil
}

func (s *fakeStore) get(profileID string) domain.ProgressionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[profileID]
}

func (s *fakeStore) saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCount
}
