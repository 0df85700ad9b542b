package llm

import (
	"errors"
	"strings"
	"testing"

	"github.com/misha7b/feedback-triage/internal/feedback"
)

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	got := BuildPrompt(&feedback.Item{
		Source:  feedback.SourceGitHub,
		Author:  "octocat",
		Content: "  login page returns 500  ",
	})

	for _, want := range []string{"Source: github", "Author: octocat", "login page returns 500"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "  login") {
		t.Error("content should be trimmed")
	}
}

func TestBuildPrompt_NoAuthor(t *testing.T) {
	t.Parallel()

	got := BuildPrompt(&feedback.Item{Source: feedback.SourceSupport, Content: "x"})
	if strings.Contains(got, "Author:") {
		t.Errorf("prompt should omit empty author:\n%s", got)
	}
}

func TestBuildPrompt_TruncatesLongContent(t *testing.T) {
	t.Parallel()

	got := BuildPrompt(&feedback.Item{Source: feedback.SourceDiscord, Content: strings.Repeat("z", maxContentChars+100)})
	_, body, ok := strings.Cut(got, "\nFeedback:\n")
	if !ok {
		t.Fatalf("prompt missing feedback marker:\n%s", got)
	}
	if n := strings.Count(body, "z"); n != maxContentChars {
		t.Errorf("content chars = %d, want %d", n, maxContentChars)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated content should end with ellipsis")
	}
}

func TestParseClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		urgency   string
		sentiment string
		category  string
	}{
		{
			name:      "plain",
			text:      `{"urgency":"critical","sentiment":"negative","category":"bug"}`,
			urgency:   "critical",
			sentiment: "negative",
			category:  "bug",
		},
		{
			name:      "fenced",
			text:      "```json\n{\"urgency\":\"low\",\"sentiment\":\"positive\",\"category\":\"praise\"}\n```",
			urgency:   "low",
			sentiment: "positive",
			category:  "praise",
		},
		{
			name:      "surrounding prose",
			text:      "Here you go: {\"urgency\":\"medium\",\"sentiment\":\"neutral\",\"category\":\"question\"} hope that helps",
			urgency:   "medium",
			sentiment: "neutral",
			category:  "question",
		},
		{
			name:      "case and whitespace",
			text:      `{"urgency":" High ","sentiment":"NEGATIVE","category":"Feature_Request"}`,
			urgency:   "high",
			sentiment: "negative",
			category:  "feature_request",
		},
		{
			name:     "unknown values dropped",
			text:     `{"urgency":"urgent","sentiment":null,"category":"bug"}`,
			category: "bug",
		},
		{
			name: "empty object",
			text: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := ParseClassification(tt.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			checkField(t, "urgency", c.Urgency, tt.urgency)
			checkField(t, "sentiment", c.Sentiment, tt.sentiment)
			checkField(t, "category", c.Category, tt.category)
		})
	}
}

func TestParseClassification_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		noObj bool
	}{
		{"empty", "", true},
		{"prose only", "I think this is a bug.", true},
		{"broken json", `{"urgency": }`, false},
		{"wrong type", `{"urgency": 3}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseClassification(tt.text)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.noObj && !errors.Is(err, ErrNoJSON) {
				t.Errorf("error = %v, want ErrNoJSON", err)
			}
		})
	}
}

func checkField[T ~string](t *testing.T, name string, got *T, want string) {
	t.Helper()
	if want == "" {
		if got != nil {
			t.Errorf("%s = %q, want nil", name, *got)
		}
		return
	}
	if got == nil {
		t.Errorf("%s = nil, want %q", name, want)
		return
	}
	if string(*got) != want {
		t.Errorf("%s = %q, want %q", name, *got, want)
	}
}
