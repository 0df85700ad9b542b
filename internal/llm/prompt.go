// Package llm holds the classification prompt and response parser shared by
// the LLM-backed feedback classifiers.
package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/misha7b/feedback-triage/internal/feedback"
)

// MaxTokens caps the classifier response. The expected reply is a single
// small JSON object.
const MaxTokens = 256

// maxContentChars bounds how much of an item's text is sent to the model.
const maxContentChars = 4000

// ErrNoJSON is returned when the model reply holds no JSON object.
var ErrNoJSON = errors.New("llm: no JSON object in response")

// SystemPrompt instructs the model to answer with one JSON object.
const SystemPrompt = `You classify user feedback for a product team.

Reply with exactly one JSON object and nothing else:
{"urgency": "...", "sentiment": "...", "category": "..."}

urgency: one of low, medium, high, critical
  critical = outage, data loss, security issue, or many users blocked
  high     = a user is blocked or a core feature is broken
  medium   = degraded experience with a workaround
  low      = cosmetic, nice-to-have, or general chatter
sentiment: one of positive, neutral, negative
category: one of bug, feature_request, question, complaint, praise, other

Use null for any field you cannot decide.`

// BuildPrompt renders the user message describing item.
func BuildPrompt(item *feedback.Item) string {
	content := strings.TrimSpace(item.Content)
	if r := []rune(content); len(r) > maxContentChars {
		content = string(r[:maxContentChars]) + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", item.Source)
	if item.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", item.Author)
	}
	b.WriteString("\nFeedback:\n")
	b.WriteString(content)
	return b.String()
}

type classificationJSON struct {
	Urgency   *string `json:"urgency"`
	Sentiment *string `json:"sentiment"`
	Category  *string `json:"category"`
}

// ParseClassification extracts the classification object from a model reply.
// Code fences and surrounding prose are tolerated. Values outside the known
// enums are dropped to nil.
func ParseClassification(text string) (*feedback.Classification, error) {
	raw, err := extractObject(text)
	if err != nil {
		return nil, err
	}

	var out classificationJSON
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("llm: decode classification: %w", err)
	}

	return &feedback.Classification{
		Urgency:   parseEnum(out.Urgency, feedback.ParseUrgency),
		Sentiment: parseEnum(out.Sentiment, feedback.ParseSentiment),
		Category:  parseEnum(out.Category, feedback.ParseCategory),
	}, nil
}

func extractObject(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}

func parseEnum[T ~string](raw *string, parse func(string) (T, error)) *T {
	if raw == nil {
		return nil
	}
	v, err := parse(strings.ToLower(strings.TrimSpace(*raw)))
	if err != nil {
		return nil
	}
	return &v
}
