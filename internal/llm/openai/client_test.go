package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/misha7b/feedback-triage/internal/feedback"
	"github.com/misha7b/feedback-triage/internal/llm"
)

func completionJSON(contents ...string) string {
	choices := make([]map[string]any, 0, len(contents))
	for i, c := range contents {
		choices = append(choices, map[string]any{
			"index":         i,
			"message":       map[string]any{"role": "assistant", "content": c},
			"finish_reason": "stop",
		})
	}
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1760000000,
		"model":   "test-model",
		"choices": choices,
		"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(b)
}

func newServer(t *testing.T, status int, body string, got *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("authorization = %q", auth)
		}
		if got != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	c := New("key", "", "")
	if c.model != DefaultModel {
		t.Errorf("model = %q, want %q", c.model, DefaultModel)
	}
	if c.Name() != "openai" {
		t.Errorf("name = %q, want openai", c.Name())
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	var req openai.ChatCompletionRequest
	srv := newServer(t, http.StatusOK,
		completionJSON(`{"urgency":"critical","sentiment":"negative","category":"complaint"}`), &req)

	c := New("sk-test", srv.URL, "test-model")
	got, err := c.Classify(context.Background(), &feedback.Item{
		Source:  feedback.SourceTwitter,
		Author:  "@someone",
		Content: "your app deleted my data",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Model != "test-model" {
		t.Errorf("model = %q, want test-model", req.Model)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(req.Messages))
	}
	if req.Messages[0].Role != openai.ChatMessageRoleSystem || req.Messages[0].Content != llm.SystemPrompt {
		t.Errorf("first message should be the system prompt, got role %q", req.Messages[0].Role)
	}
	if !strings.Contains(req.Messages[1].Content, "your app deleted my data") {
		t.Errorf("user message missing content: %q", req.Messages[1].Content)
	}

	if got.Urgency == nil || *got.Urgency != feedback.UrgencyCritical {
		t.Errorf("urgency = %v, want critical", got.Urgency)
	}
	if got.Sentiment == nil || *got.Sentiment != feedback.SentimentNegative {
		t.Errorf("sentiment = %v, want negative", got.Sentiment)
	}
	if got.Category == nil || *got.Category != feedback.CategoryComplaint {
		t.Errorf("category = %v, want complaint", got.Category)
	}
}

func TestClassify_NoChoices(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.StatusOK, completionJSON(), nil)

	_, err := New("sk-test", srv.URL, "test-model").
		Classify(context.Background(), &feedback.Item{Source: feedback.SourceDiscord, Content: "x"})
	if !errors.Is(err, ErrNoChoices) {
		t.Errorf("error = %v, want ErrNoChoices", err)
	}
}

func TestClassify_APIError(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"rate limited","type":"requests","code":"rate_limit_exceeded"}}`, nil)

	_, err := New("sk-test", srv.URL, "test-model").
		Classify(context.Background(), &feedback.Item{Source: feedback.SourceDiscord, Content: "x"})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *openai.APIError", err)
	}
	if apiErr.HTTPStatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", apiErr.HTTPStatusCode)
	}
}

func TestClassify_PartialReply(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.StatusOK, completionJSON(`{"urgency":"low","sentiment":"confused","category":null}`), nil)

	got, err := New("sk-test", srv.URL, "test-model").
		Classify(context.Background(), &feedback.Item{Source: feedback.SourceGitHub, Content: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Urgency == nil || *got.Urgency != feedback.UrgencyLow {
		t.Errorf("urgency = %v, want low", got.Urgency)
	}
	if got.Sentiment != nil {
		t.Errorf("sentiment = %v, want nil", *got.Sentiment)
	}
	if got.Category != nil {
		t.Errorf("category = %v, want nil", *got.Category)
	}
}
