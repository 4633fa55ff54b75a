// Package llm generates stories through an OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"reading-adventure-service/internal/domain"

	openai "github.com/sashabaranov/go-openai"
)

const submitStoryTool = "submit_story"

// Config selects the model and endpoint. An empty BaseURL means api.openai.com.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

// StoryGenerator asks the model for a story through a forced tool call.
type StoryGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewStoryGenerator(cfg Config) *StoryGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &StoryGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

// Generate requests a story and decodes it into a StoryDocument.
func (g *StoryGenerator) Generate(ctx context.Context, params domain.StoryParams) (domain.StoryDocument, error) {
	log.Printf("generating %s story at reading level %s", params.Theme, params.ReadingLevel)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(params)},
		},
		Tools: []openai.Tool{
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        submitStoryTool,
					Description: "Submit the generated story with its comprehension questions",
					Parameters:  storyToolSchema,
				},
			},
		},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: submitStoryTool},
		},
	})
	if err != nil {
		return domain.StoryDocument{}, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.StoryDocument{}, fmt.Errorf("no choices in response")
	}

	msg := resp.Choices[0].Message
	var raw string
	switch {
	case len(msg.ToolCalls) > 0:
		call := msg.ToolCalls[0]
		if call.Function.Name != submitStoryTool {
			return domain.StoryDocument{}, fmt.Errorf("unexpected tool call: %s", call.Function.Name)
		}
		raw = call.Function.Arguments
	case strings.TrimSpace(msg.Content) != "":
		// Some compatible servers ignore tool_choice and answer with plain JSON.
		raw = msg.Content
	default:
		return domain.StoryDocument{}, fmt.Errorf("empty response")
	}

	story, err := domain.DecodeStory([]byte(raw))
	if err != nil {
		return domain.StoryDocument{}, err
	}
	log.Printf("generated story %q with %d paragraphs", story.Title, len(story.Paragraphs))
	return story, nil
}
