package llm

import (
	"fmt"
	"strings"

	"reading-adventure-service/internal/domain"
)

const systemPrompt = "You are a children's author and reading teacher. You write short, educational, engaging stories " +
	"and multiple-choice comprehension questions with exactly 4 options each."

func buildPrompt(params domain.StoryParams) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Create a short story for children at reading level %s.\n", params.ReadingLevel))
	sb.WriteString(fmt.Sprintf("Theme: %s\n", params.Theme))
	sb.WriteString(fmt.Sprintf("Characters: %s\n", params.Characters))
	if params.Description != "" {
		sb.WriteString(fmt.Sprintf("Additional details: %s\n", params.Description))
	}
	sb.WriteString("\n")

	sb.WriteString("Requirements:\n")
	sb.WriteString("- Divide the story into 3-4 clear paragraphs\n")
	sb.WriteString("- For each paragraph write 2 multiple-choice comprehension questions about that paragraph only\n")
	sb.WriteString("- The answer to every question must be stated in its paragraph\n")
	sb.WriteString("- Each question must have exactly 4 options and a 0-based correctAnswer index\n")
	sb.WriteString("- Use the submit_story tool to return the story\n")

	return sb.String()
}

// storyToolSchema mirrors the JSON shape domain.DecodeStory reads.
var storyToolSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"title": map[string]interface{}{
			"type":        "string",
			"description": "Story title",
		},
		"story": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"description": "Story paragraphs in reading order",
		},
		"questions": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"paragraph": map[string]interface{}{
						"type":        "integer",
						"description": "0-based index of the paragraph the questions are about",
					},
					"questions": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"question": map[string]interface{}{"type": "string"},
								"options": map[string]interface{}{
									"type":        "array",
									"items":       map[string]interface{}{"type": "string"},
									"description": "Array of 4 multiple choice options",
								},
								"correctAnswer": map[string]interface{}{
									"type":        "integer",
									"description": "0-based index of the correct option",
								},
							},
							"required": []string{"question", "options", "correctAnswer"},
						},
					},
				},
				"required": []string{"paragraph", "questions"},
			},
		},
	},
	"required": []string{"title", "story", "questions"},
}
