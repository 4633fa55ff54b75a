package app

import (
	"fmt"
	"math/rand"
	"sync"

	"reading-adventure-service/internal/domain"
)

var celebrationEmojis = []string{"🌟", "⭐", "✨", "💫", "🎯"}

// FeedbackPicker builds the celebration shown after grading. The random source
// is injected so tests can pin the chosen emoji.
type FeedbackPicker struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewFeedbackPicker(rnd *rand.Rand) *FeedbackPicker {
	return &FeedbackPicker{rnd: rnd}
}

// Pick returns the feedback for a graded paragraph.
func (f *FeedbackPicker) Pick(result domain.GradeResult) domain.Feedback {
	f.mu.Lock()
	emoji := celebrationEmojis[f.rnd.Intn(len(celebrationEmojis))]
	f.mu.Unlock()

	return domain.Feedback{
		Title: emoji + " Amazing job!",
		Description: fmt.Sprintf("You got %d out of %d questions correct! (+%d points)",
			result.CorrectCount, result.TotalQuestions, result.Points),
	}
}
