package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ReadingLevels are the grades a story can be written for.
var ReadingLevels = []string{"1", "2", "3", "4", "5"}

// Normalize trims surrounding whitespace from every field.
func (p StoryParams) Normalize() StoryParams {
	return StoryParams{
		Theme:        strings.TrimSpace(p.Theme),
		Characters:   strings.TrimSpace(p.Characters),
		ReadingLevel: strings.TrimSpace(p.ReadingLevel),
		Description:  strings.TrimSpace(p.Description),
	}
}

// Validate checks the fields the story form requires.
func (p StoryParams) Validate() error {
	if p.Theme == "" {
		return fmt.Errorf("%w: please select a theme", ErrInvalidStoryParams)
	}
	if len([]rune(p.Characters)) < 3 {
		return fmt.Errorf("%w: please describe the characters", ErrInvalidStoryParams)
	}
	for _, level := range ReadingLevels {
		if p.ReadingLevel == level {
			return nil
		}
	}
	return fmt.Errorf("%w: please select a reading level", ErrInvalidStoryParams)
}

// CacheKey identifies equivalent requests regardless of case and spacing.
func (p StoryParams) CacheKey() string {
	n := p.Normalize()
	joined := strings.ToLower(strings.Join([]string{n.Theme, n.Characters, n.ReadingLevel, n.Description}, "\x1f"))
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
