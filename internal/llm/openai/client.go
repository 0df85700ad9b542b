// Package openai classifies feedback items against any OpenAI-compatible
// chat completions endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/misha7b/feedback-triage/internal/feedback"
	"github.com/misha7b/feedback-triage/internal/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.GPT4oMini

// ErrNoChoices is returned when the endpoint answers with no completion.
var ErrNoChoices = errors.New("openai: no response choices")

// Client implements feedback.Classifier using go-openai.
type Client struct {
	client *openai.Client
	model  string
}

// New creates a classifier. An empty baseURL keeps the OpenAI default.
func New(apiKey, baseURL, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return "openai" }

// Classify asks the model for the urgency, sentiment and category of item.
func (c *Client) Classify(ctx context.Context, item *feedback.Item) (*feedback.Classification, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llm.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: llm.BuildPrompt(item)},
		},
		Temperature: 0,
		MaxTokens:   llm.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	out, err := llm.ParseClassification(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("openai response: %w", err)
	}
	return out, nil
}
