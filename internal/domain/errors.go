package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a story session does not exist or has ended.
	ErrSessionNotFound = errors.New("story session not found")
	// ErrInvalidParagraph indicates a paragraph index outside the story.
	ErrInvalidParagraph = errors.New("invalid paragraph index")
	// ErrInvalidQuestion indicates a question index outside the paragraph's quiz.
	ErrInvalidQuestion = errors.New("invalid question index")
	// ErrInvalidOption indicates an option index outside [0, OptionsPerQuestion).
	ErrInvalidOption = errors.New("invalid option index")
	// ErrNegativePoints is returned when an award would remove points.
	ErrNegativePoints = errors.New("points must not be negative")
	// ErrInvalidStoryParams indicates the story form was not filled in correctly.
	ErrInvalidStoryParams = errors.New("invalid story parameters")
	// ErrGenerationInProgress is returned while the profile already waits for a story.
	ErrGenerationInProgress = errors.New("story generation already in progress")
	// ErrGenerationFailed wraps any failure of the story generator.
	ErrGenerationFailed = errors.New("story generation failed")
	// ErrMalformedStory indicates the generator returned something that is not a story.
	ErrMalformedStory = errors.New("malformed story document")
	// ErrProgressNotFound is returned by progress stores for unknown profiles.
	ErrProgressNotFound = errors.New("progress not found")
)
