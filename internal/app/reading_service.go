package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"reading-adventure-service/internal/domain"

	"github.com/google/uuid"
)

// StoryGenerator is the external collaborator that writes stories (an LLM, a fixture, etc).
type StoryGenerator interface {
	Generate(ctx context.Context, params domain.StoryParams) (domain.StoryDocument, error)
}

// StoryRepository hands out stories for a set of parameters, possibly from a cache.
type StoryRepository interface {
	GetStory(ctx context.Context, params domain.StoryParams) (domain.StoryDocument, error)
}

// SessionRepository abstracts how story sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *QuizSession)
	Get(sessionID string) (*QuizSession, bool)
	Delete(sessionID string)
}

// ProfileRepository keeps one Progression per profile for the life of the process.
type ProfileRepository interface {
	GetOrCreate(profileID string) *Progression
	List() []*Progression
}

// ReadingService contains the reading and quiz use cases.
type ReadingService struct {
	stories  StoryRepository
	sessions SessionRepository
	profiles ProfileRepository
	feedback *FeedbackPicker
	newID    func() string

	mu         sync.Mutex
	generating map[string]struct{}
}

func NewReadingService(stories StoryRepository, sessions SessionRepository, profiles ProfileRepository, feedback *FeedbackPicker) *ReadingService {
	return &ReadingService{
		stories:    stories,
		sessions:   sessions,
		profiles:   profiles,
		feedback:   feedback,
		newID:      uuid.NewString,
		generating: make(map[string]struct{}),
	}
}

// GenerateStory asks for a story and opens a quiz session over it.
// A profile may only wait for one story at a time.
func (s *ReadingService) GenerateStory(ctx context.Context, profileID string, params domain.StoryParams) (domain.SessionSnapshot, error) {
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return domain.SessionSnapshot{}, err
	}
	if !s.beginGeneration(profileID) {
		return domain.SessionSnapshot{}, domain.ErrGenerationInProgress
	}
	defer s.endGeneration(profileID)

	story, err := s.stories.GetStory(ctx, params)
	if err != nil {
		log.Printf("story generation for profile %s failed: %v", profileID, err)
		return domain.SessionSnapshot{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	if len(story.Paragraphs) == 0 {
		return domain.SessionSnapshot{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, domain.ErrMalformedStory)
	}

	session := NewQuizSession(s.newID(), profileID, story)
	s.sessions.Put(session)
	log.Printf("story %q ready for profile %s (session %s, %d paragraphs)", story.Title, profileID, session.ID(), len(story.Paragraphs))
	return session.Snapshot(), nil
}

// Progress returns the display values of a profile's progression.
func (s *ReadingService) Progress(ctx context.Context, profileID string) domain.ProgressView {
	return s.progression(ctx, profileID).View()
}

// SubscribeProgress streams progress views of a profile.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ReadingService) SubscribeProgress(ctx context.Context, profileID string) (<-chan domain.ProgressView, func()) {
	return s.progression(ctx, profileID).Subscribe()
}

// Session returns the snapshot of a session owned by the profile.
func (s *ReadingService) Session(_ context.Context, profileID, sessionID string) (domain.SessionSnapshot, error) {
	session, err := s.lookup(profileID, sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// OpenParagraph expands a paragraph's quiz.
func (s *ReadingService) OpenParagraph(_ context.Context, profileID, sessionID string, paragraph int) (domain.SessionSnapshot, error) {
	session, err := s.lookup(profileID, sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if err := session.OpenParagraph(paragraph); err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// SelectAnswer records a chosen option.
func (s *ReadingService) SelectAnswer(_ context.Context, profileID, sessionID string, paragraph, question, option int) (domain.SessionSnapshot, error) {
	session, err := s.lookup(profileID, sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if err := session.SelectAnswer(paragraph, question, option); err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// GradeParagraph grades a paragraph once and awards its points to the profile.
func (s *ReadingService) GradeParagraph(ctx context.Context, profileID, sessionID string, paragraph int) (domain.GradeOutcome, error) {
	session, err := s.lookup(profileID, sessionID)
	if err != nil {
		return domain.GradeOutcome{}, err
	}
	result, graded, err := session.GradeParagraph(paragraph)
	if err != nil {
		return domain.GradeOutcome{}, err
	}

	progression := s.progression(ctx, profileID)
	outcome := domain.GradeOutcome{Result: result, Graded: graded}
	if graded {
		award, err := progression.AwardPoints(result.Points)
		if err != nil {
			return domain.GradeOutcome{}, err
		}
		outcome.LevelsGained = award.LevelsGained
		feedback := s.feedback.Pick(result)
		outcome.Feedback = &feedback
	}
	outcome.Progress = progression.View()
	return outcome, nil
}

// EndSession drops a session when its story is no longer displayed.
func (s *ReadingService) EndSession(_ context.Context, profileID, sessionID string) error {
	if _, err := s.lookup(profileID, sessionID); err != nil {
		return err
	}
	s.sessions.Delete(sessionID)
	return nil
}

// Close waits for outstanding progress writes.
func (s *ReadingService) Close() {
	for _, p := range s.profiles.List() {
		p.Wait()
	}
}

func (s *ReadingService) progression(ctx context.Context, profileID string) *Progression {
	p := s.profiles.GetOrCreate(profileID)
	if p.Status() != StatusHydrated {
		if err := p.Hydrate(ctx); err != nil {
			// The in-memory state stays authoritative; hydration is retried on next access.
			log.Printf("progress for profile %s is provisional: %v", profileID, err)
		}
	}
	return p
}

func (s *ReadingService) lookup(profileID, sessionID string) (*QuizSession, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok || session.ProfileID() != profileID {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *ReadingService) beginGeneration(profileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.generating[profileID]; busy {
		return false
	}
	s.generating[profileID] = struct{}{}
	return true
}

func (s *ReadingService) endGeneration(profileID string) {
	s.mu.Lock()
	delete(s.generating, profileID)
	s.mu.Unlock()
}
