package app

import (
	"sort"
	"sync"
	"time"

	"reading-adventure-service/internal/domain"
)

// QuizSession tracks answers and completed paragraphs for one displayed story.
type QuizSession struct {
	id        string
	profileID string
	story     domain.StoryDocument
	createdAt time.Time

	mu        sync.RWMutex
	selected  map[domain.AnswerKey]int
	completed map[int]struct{}
	order     []int
	active    int // -1 while no paragraph is open
}

// NewQuizSession starts a session over a generated story.
func NewQuizSession(id, profileID string, story domain.StoryDocument) *QuizSession {
	return NewQuizSessionWithClock(id, profileID, story, time.Now)
}

// NewQuizSessionWithClock takes the creation time from now, for deterministic snapshots.
func NewQuizSessionWithClock(id, profileID string, story domain.StoryDocument, now func() time.Time) *QuizSession {
	return &QuizSession{
		id:        id,
		profileID: profileID,
		story:     story,
		createdAt: now(),
		selected:  make(map[domain.AnswerKey]int),
		completed: make(map[int]struct{}),
		active:    -1,
	}
}

func (s *QuizSession) ID() string        { return s.id }
func (s *QuizSession) ProfileID() string { return s.profileID }

// Story returns the document the session was created for.
func (s *QuizSession) Story() domain.StoryDocument { return s.story }

// OpenParagraph marks a paragraph as the one being read.
func (s *QuizSession) OpenParagraph(paragraph int) error {
	if !s.validParagraph(paragraph) {
		return domain.ErrInvalidParagraph
	}
	s.mu.Lock()
	s.active = paragraph
	s.mu.Unlock()
	return nil
}

// SelectAnswer records or replaces the chosen option for a question.
// Selections on a completed paragraph are accepted and ignored.
func (s *QuizSession) SelectAnswer(paragraph, question, option int) error {
	if !s.validParagraph(paragraph) {
		return domain.ErrInvalidParagraph
	}
	if question < 0 || question >= len(s.story.QuestionsFor(paragraph)) {
		return domain.ErrInvalidQuestion
	}
	if option < 0 || option >= domain.OptionsPerQuestion {
		return domain.ErrInvalidOption
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.completed[paragraph]; done {
		return nil
	}
	s.selected[domain.AnswerKey{Paragraph: paragraph, Question: question}] = option
	return nil
}

// GradeParagraph compares the recorded answers with the key and completes the paragraph.
// It grades each paragraph at most once; later calls return a zero result and false.
func (s *QuizSession) GradeParagraph(paragraph int) (domain.GradeResult, bool, error) {
	if !s.validParagraph(paragraph) {
		return domain.GradeResult{}, false, domain.ErrInvalidParagraph
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.completed[paragraph]; done {
		return domain.GradeResult{Paragraph: paragraph}, false, nil
	}

	questions := s.story.QuestionsFor(paragraph)
	correct := 0
	for i, q := range questions {
		chosen, ok := s.selected[domain.AnswerKey{Paragraph: paragraph, Question: i}]
		if ok && q.CorrectOption != domain.NoCorrectOption && chosen == q.CorrectOption {
			correct++
		}
	}

	s.completed[paragraph] = struct{}{}
	s.order = append(s.order, paragraph)
	return domain.GradeResult{
		Paragraph:      paragraph,
		CorrectCount:   correct,
		TotalQuestions: len(questions),
		Points:         scorePercent(correct, len(questions)),
	}, true, nil
}

// OverallProgress is the fraction of paragraphs completed, in [0, 1].
func (s *QuizSession) OverallProgress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progressLocked()
}

// ParagraphState derives the workflow state of a paragraph.
func (s *QuizSession) ParagraphState(paragraph int) (domain.ParagraphState, error) {
	if !s.validParagraph(paragraph) {
		return "", domain.ErrInvalidParagraph
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked(paragraph), nil
}

// IsCompleted reports whether the paragraph has been graded.
func (s *QuizSession) IsCompleted(paragraph int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, done := s.completed[paragraph]
	return done
}

// Snapshot returns the renderable view of the session.
func (s *QuizSession) Snapshot() domain.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paragraphs := make([]domain.ParagraphView, len(s.story.Paragraphs))
	for i, text := range s.story.Paragraphs {
		paragraphs[i] = domain.ParagraphView{
			Index:     i,
			Text:      text,
			State:     s.stateLocked(i),
			Questions: s.story.QuestionsFor(i),
		}
	}

	selected := make([]domain.SelectedAnswer, 0, len(s.selected))
	for key, option := range s.selected {
		selected = append(selected, domain.SelectedAnswer{Paragraph: key.Paragraph, Question: key.Question, Option: option})
	}
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].Paragraph != selected[j].Paragraph {
			return selected[i].Paragraph < selected[j].Paragraph
		}
		return selected[i].Question < selected[j].Question
	})

	snapshot := domain.SessionSnapshot{
		SessionID:       s.id,
		ProfileID:       s.profileID,
		Title:           s.story.Title,
		Paragraphs:      paragraphs,
		Selected:        selected,
		Completed:       append([]int(nil), s.order...),
		ProgressPercent: int(s.progressLocked()*100 + 0.5),
		CreatedAt:       s.createdAt,
	}
	if s.active >= 0 {
		active := s.active
		snapshot.ActiveParagraph = &active
	}
	return snapshot
}

func (s *QuizSession) stateLocked(paragraph int) domain.ParagraphState {
	if _, done := s.completed[paragraph]; done {
		return domain.ParagraphCompleted
	}
	for key := range s.selected {
		if key.Paragraph == paragraph {
			return domain.ParagraphAnswering
		}
	}
	if s.active == paragraph {
		return domain.ParagraphActive
	}
	return domain.ParagraphNotViewed
}

func (s *QuizSession) progressLocked() float64 {
	if len(s.story.Paragraphs) == 0 {
		return 0
	}
	return float64(len(s.completed)) / float64(len(s.story.Paragraphs))
}

func (s *QuizSession) validParagraph(paragraph int) bool {
	return paragraph >= 0 && paragraph < len(s.story.Paragraphs)
}

// scorePercent rounds 100*correct/total half-up in integer arithmetic.
func scorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}
