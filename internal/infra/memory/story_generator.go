package memory

import (
	"context"
	"strings"

	"reading-adventure-service/internal/domain"
)

// StaticStoryGenerator serves fixed stories keyed by theme (useful for tests/demos).
// Themes without an entry fall back to the default story.
type StaticStoryGenerator struct {
	stories  map[string]domain.StoryDocument
	fallback domain.StoryDocument
}

func NewStaticStoryGenerator(fallback domain.StoryDocument, byTheme map[string]domain.StoryDocument) *StaticStoryGenerator {
	return &StaticStoryGenerator{stories: byTheme, fallback: fallback}
}

func (g *StaticStoryGenerator) Generate(ctx context.Context, params domain.StoryParams) (domain.StoryDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoryDocument{}, err
	}
	if story, ok := g.stories[strings.ToLower(params.Theme)]; ok {
		return story, nil
	}
	if len(g.fallback.Paragraphs) == 0 {
		return domain.StoryDocument{}, domain.ErrMalformedStory
	}
	return g.fallback, nil
}

// SampleStory is a short two-question-per-paragraph story used by the demo server.
func SampleStory() domain.StoryDocument {
	return domain.StoryDocument{
		Title: "Pip and the Lost Lantern",
		Paragraphs: []string{
			"Pip the hedgehog lived at the edge of Bramble Wood. Every night she lit a small red lantern so the fireflies could find their way home.",
			"One evening the lantern was gone. Pip asked her friend Otto the owl for help, and together they followed a trail of shiny acorn caps.",
			"The trail led to a sleepy badger who had borrowed the lantern to read a bedtime book. He said sorry, and they all read the story together.",
		},
		Quizzes: map[int][]domain.Question{
			0: {
				{Text: "What kind of animal is Pip?", Options: []string{"A hedgehog", "An owl", "A badger", "A firefly"}, CorrectOption: 0},
				{Text: "What color is Pip's lantern?", Options: []string{"Blue", "Red", "Green", "Yellow"}, CorrectOption: 1},
			},
			1: {
				{Text: "Who helped Pip look for the lantern?", Options: []string{"A badger", "A fox", "Otto the owl", "A firefly"}, CorrectOption: 2},
				{Text: "What did the trail look like?", Options: []string{"Footprints", "Feathers", "Leaves", "Shiny acorn caps"}, CorrectOption: 3},
			},
			2: {
				{Text: "Why did the badger take the lantern?", Options: []string{"To read a bedtime book", "To find food", "To scare Pip", "To light a fire"}, CorrectOption: 0},
				{Text: "How did the story end?", Options: []string{"Pip moved away", "They read the story together", "The lantern broke", "Otto flew south"}, CorrectOption: 1},
			},
		},
	}
}
