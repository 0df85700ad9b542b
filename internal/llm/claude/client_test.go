package claude

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/misha7b/feedback-triage/internal/feedback"
	"github.com/misha7b/feedback-triage/internal/llm"
)

func messageJSON(text string) string {
	b, _ := json.Marshal(map[string]any{
		"id":          "msg_01",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-test",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
	})
	return string(b)
}

func TestNew_DefaultModel(t *testing.T) {
	t.Parallel()

	c := New("key", "")
	if c.model != DefaultModel {
		t.Errorf("model = %q, want %q", c.model, DefaultModel)
	}
	if c.Name() != "claude" {
		t.Errorf("name = %q, want claude", c.Name())
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	var (
		gotPath string
		gotKey  string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageJSON(`{"urgency":"high","sentiment":"negative","category":"bug"}`))
	}))
	defer srv.Close()

	c := New("sk-test", "claude-test", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	got, err := c.Classify(context.Background(), &feedback.Item{
		Source:  feedback.SourceSupport,
		Content: "cannot log in",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/v1/messages" {
		t.Errorf("path = %q, want /v1/messages", gotPath)
	}
	if gotKey != "sk-test" {
		t.Errorf("api key = %q, want sk-test", gotKey)
	}
	if gotBody["model"] != "claude-test" {
		t.Errorf("model = %v, want claude-test", gotBody["model"])
	}
	if n, _ := gotBody["max_tokens"].(float64); int(n) != llm.MaxTokens {
		t.Errorf("max_tokens = %v, want %d", gotBody["max_tokens"], llm.MaxTokens)
	}
	if raw, _ := json.Marshal(gotBody["messages"]); !strings.Contains(string(raw), "cannot log in") {
		t.Errorf("messages missing item content: %s", raw)
	}

	if got.Urgency == nil || *got.Urgency != feedback.UrgencyHigh {
		t.Errorf("urgency = %v, want high", got.Urgency)
	}
	if got.Sentiment == nil || *got.Sentiment != feedback.SentimentNegative {
		t.Errorf("sentiment = %v, want negative", got.Sentiment)
	}
	if got.Category == nil || *got.Category != feedback.CategoryBug {
		t.Errorf("category = %v, want bug", got.Category)
	}
}

func TestClassify_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	c := New("bad", "claude-test", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	_, err := c.Classify(context.Background(), &feedback.Item{Source: feedback.SourceDiscord, Content: "x"})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *anthropic.Error", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
}

func TestClassify_UnparseableReply(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageJSON("I'm not sure how to classify this."))
	}))
	defer srv.Close()

	c := New("sk-test", "claude-test", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	_, err := c.Classify(context.Background(), &feedback.Item{Source: feedback.SourceDiscord, Content: "x"})
	if !errors.Is(err, llm.ErrNoJSON) {
		t.Errorf("error = %v, want ErrNoJSON", err)
	}
}

func TestResponseText(t *testing.T) {
	t.Parallel()

	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: `{"urgency":`},
			{Type: "tool_use", ID: "tu-1", Name: "ignored"},
			{Type: "text", Text: `"low"}`},
		},
		StopReason: anthropic.StopReasonEndTurn,
	}

	if got := responseText(msg); got != `{"urgency":"low"}` {
		t.Errorf("text = %q", got)
	}
}

func TestResponseText_Empty(t *testing.T) {
	t.Parallel()

	if got := responseText(&anthropic.Message{}); got != "" {
		t.Errorf("text = %q, want empty", got)
	}
}
