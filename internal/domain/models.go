package domain

import "time"

const (
	// OptionsPerQuestion is the number of choices every generated question carries.
	OptionsPerQuestion = 4
	// NoCorrectOption marks a question whose answer key is missing or out of range.
	NoCorrectOption = -1
	// ExperiencePerLevel scales the experience needed to leave a level.
	ExperiencePerLevel = 100
)

// ProgressionState holds the three progression counters of a profile.
type ProgressionState struct {
	Score      int `json:"score"`
	Level      int `json:"level"`
	Experience int `json:"experience"`
}

// DefaultProgression is the state of a profile that has never earned points.
func DefaultProgression() ProgressionState {
	return ProgressionState{Score: 0, Level: 1, Experience: 0}
}

// ProgressView is the read-only display form of a ProgressionState.
type ProgressView struct {
	Score              int  `json:"score"`
	Level              int  `json:"level"`
	Experience         int  `json:"experience"`
	ExperienceRequired int  `json:"experienceRequired"`
	Percent            int  `json:"percent"`
	Hydrated           bool `json:"hydrated"`
}

// StoryParams are the reader's choices sent to the story generator.
type StoryParams struct {
	Theme        string `json:"theme"`
	Characters   string `json:"characters"`
	ReadingLevel string `json:"readingLevel"`
	Description  string `json:"description"`
}

// Question is a four-option comprehension question about one paragraph.
type Question struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"` // NoCorrectOption if unknown
}

// StoryDocument is a generated story. It is never mutated after it is received.
type StoryDocument struct {
	Title      string             `json:"title"`
	Paragraphs []string           `json:"paragraphs"`
	Quizzes    map[int][]Question `json:"quizzes"`
}

// QuestionsFor returns the questions attached to a paragraph, nil when there are none.
func (d StoryDocument) QuestionsFor(paragraph int) []Question {
	if d.Quizzes == nil {
		return nil
	}
	return d.Quizzes[paragraph]
}

// ParagraphState is the position of one paragraph in the reading workflow.
type ParagraphState string

const (
	ParagraphNotViewed ParagraphState = "not_viewed"
	ParagraphActive    ParagraphState = "active"
	ParagraphAnswering ParagraphState = "answering"
	ParagraphCompleted ParagraphState = "completed"
)

// GradeResult is the outcome of grading one paragraph.
type GradeResult struct {
	Paragraph      int `json:"paragraph"`
	CorrectCount   int `json:"correctCount"`
	TotalQuestions int `json:"totalQuestions"`
	Points         int `json:"points"`
}

// AnswerKey identifies a question inside a story.
type AnswerKey struct {
	Paragraph int
	Question  int
}

// SelectedAnswer is the wire form of one recorded selection.
type SelectedAnswer struct {
	Paragraph int `json:"paragraph"`
	Question  int `json:"question"`
	Option    int `json:"option"`
}

// ParagraphView pairs a paragraph with its quiz and workflow state.
type ParagraphView struct {
	Index     int            `json:"index"`
	Text      string         `json:"text"`
	State     ParagraphState `json:"state"`
	Questions []Question     `json:"questions"`
}

// SessionSnapshot is the renderable story-with-quizzes view of a session.
type SessionSnapshot struct {
	SessionID       string           `json:"sessionId"`
	ProfileID       string           `json:"profileId"`
	Title           string           `json:"title"`
	Paragraphs      []ParagraphView  `json:"paragraphs"`
	Selected        []SelectedAnswer `json:"selected"`
	Completed       []int            `json:"completed"`
	ActiveParagraph *int             `json:"activeParagraph,omitempty"`
	ProgressPercent int              `json:"progressPercent"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// Feedback is the celebratory message shown after a paragraph is graded.
type Feedback struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GradeOutcome summarizes a grading request for the caller.
type GradeOutcome struct {
	Result       GradeResult  `json:"result"`
	Graded       bool         `json:"graded"`
	LevelsGained int          `json:"levelsGained"`
	Progress     ProgressView `json:"progress"`
	Feedback     *Feedback    `json:"feedback,omitempty"`
}
