package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// storyPayload is the JSON shape the generator is asked to produce.
type storyPayload struct {
	Title     string             `json:"title"`
	Story     []string           `json:"story"`
	Questions []paragraphPayload `json:"questions"`
}

// Quiz fields are kept raw: a mistyped value spoils one question, not the story.
type paragraphPayload struct {
	Paragraph json.RawMessage   `json:"paragraph"`
	Questions []questionPayload `json:"questions"`
}

type questionPayload struct {
	Question      json.RawMessage `json:"question"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
}

// DecodeStory parses generator output into a StoryDocument.
// Quiz blocks pointing outside the story are dropped and unusable answer keys
// become NoCorrectOption, so grading never has to deal with bad input.
func DecodeStory(data []byte) (StoryDocument, error) {
	var payload storyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return StoryDocument{}, fmt.Errorf("%w: %v", ErrMalformedStory, err)
	}
	if len(payload.Story) == 0 {
		return StoryDocument{}, fmt.Errorf("%w: story has no paragraphs", ErrMalformedStory)
	}

	doc := StoryDocument{
		Title:      payload.Title,
		Paragraphs: payload.Story,
		Quizzes:    make(map[int][]Question, len(payload.Questions)),
	}
	for _, block := range payload.Questions {
		paragraph, ok := rawInt(block.Paragraph)
		if !ok || paragraph < 0 || paragraph >= len(payload.Story) {
			continue
		}
		if _, seen := doc.Quizzes[paragraph]; seen {
			continue
		}
		questions := make([]Question, 0, len(block.Questions))
		for _, q := range block.Questions {
			correct := NoCorrectOption
			if key, ok := rawInt(q.CorrectAnswer); ok && key >= 0 && key < OptionsPerQuestion {
				correct = key
			}
			questions = append(questions, Question{
				Text:          rawString(q.Question),
				Options:       rawStrings(q.Options),
				CorrectOption: correct,
			})
		}
		doc.Quizzes[paragraph] = questions
	}
	return doc, nil
}

// rawInt accepts JSON numbers with no fractional part. Strings, floats and
// null are rejected.
func rawInt(raw json.RawMessage) (int, bool) {
	var n float64
	if len(raw) == 0 || json.Unmarshal(raw, &n) != nil {
		return 0, false
	}
	if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func rawString(raw json.RawMessage) string {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func rawStrings(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, rawString(item))
	}
	return out
}
