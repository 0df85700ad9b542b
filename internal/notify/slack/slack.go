// Package slack posts escalated feedback items to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/misha7b/feedback-triage/internal/feedback"
)

const (
	maxContentLen = 2500
	httpTimeout   = 10 * time.Second
)

// Notifier sends escalations to a Slack webhook.
type Notifier struct {
	webhookURL string
	publicURL  string
	client     *http.Client
	logger     log.Logger
}

// New creates a Slack notifier. If webhookURL is empty, NotifyEscalation is a
// no-op. publicURL, when set, is used to link back to the item.
func New(webhookURL, publicURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		publicURL:  strings.TrimRight(publicURL, "/"),
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// NotifyEscalation posts item to the configured webhook.
func (n *Notifier) NotifyEscalation(ctx context.Context, item *feedback.Item) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(n.buildMessage(item))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack escalation sent", "item_id", item.ID)
	return nil
}

func (n *Notifier) buildMessage(it *feedback.Item) map[string]any {
	return map[string]any{
		"text": fmt.Sprintf("Escalated feedback #%d from %s", it.ID, it.Source),
		"blocks": []map[string]any{
			headerBlock(it),
			fieldsBlock(it),
			{"type": "divider"},
			contentBlock(it),
			n.contextBlock(it),
		},
	}
}

func headerBlock(it *feedback.Item) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s Escalated: #%d from %s", urgencyEmoji(it.Urgency), it.ID, it.Source),
		},
	}
}

func fieldsBlock(it *feedback.Item) map[string]any {
	author := it.Author
	if author == "" {
		author = "unknown"
	}
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Urgency:* %s", orUnset(it.Urgency))},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Sentiment:* %s", orUnset(it.Sentiment))},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Category:* %s", orUnset(it.Category))},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Author:* %s", author)},
	}
	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func contentBlock(it *feedback.Item) map[string]any {
	text := truncate(it.Content, maxContentLen)
	if text == "" {
		text = "_No content._"
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": quote(text),
		},
	}
}

func (n *Notifier) contextBlock(it *feedback.Item) map[string]any {
	line := fmt.Sprintf("feedback-triage • created %s", it.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	if n.publicURL != "" {
		line += fmt.Sprintf(" • <%s/api/v1/feedback/%d|view item>", n.publicURL, it.ID)
	}
	return map[string]any{
		"type":     "context",
		"elements": []map[string]any{{"type": "mrkdwn", "text": line}},
	}
}

func urgencyEmoji(u *feedback.Urgency) string {
	if u == nil {
		return "\u26aa" // white circle
	}
	switch *u {
	case feedback.UrgencyCritical:
		return "\U0001f534" // red circle
	case feedback.UrgencyHigh:
		return "\U0001f7e0" // orange circle
	case feedback.UrgencyMedium:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func orUnset[T ~string](v *T) string {
	if v == nil {
		return "_unset_"
	}
	return string(*v)
}

// quote renders s as a Slack block quote.
func quote(s string) string {
	return "> " + strings.ReplaceAll(s, "\n", "\n> ")
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
