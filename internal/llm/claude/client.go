// Package claude classifies feedback items with the Anthropic Messages API.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/misha7b/feedback-triage/internal/feedback"
	"github.com/misha7b/feedback-triage/internal/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5"

// Client implements feedback.Classifier using the Anthropic SDK.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a Claude classifier. Extra request options are passed to the
// SDK client, e.g. option.WithBaseURL in tests.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return "claude" }

// Classify asks the model for the urgency, sentiment and category of item.
func (c *Client) Classify(ctx context.Context, item *feedback.Item) (*feedback.Classification, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: llm.MaxTokens,
		System:    []anthropic.TextBlockParam{{Text: llm.SystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(llm.BuildPrompt(item))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude API call: %w", err)
	}

	out, err := llm.ParseClassification(responseText(msg))
	if err != nil {
		return nil, fmt.Errorf("claude response: %w", err)
	}
	return out, nil
}

// responseText joins the text blocks of msg.
func responseText(msg *anthropic.Message) string {
	var b strings.Builder
	for i := range msg.Content {
		if msg.Content[i].Type == "text" {
			b.WriteString(msg.Content[i].Text)
		}
	}
	return b.String()
}
