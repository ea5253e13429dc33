// Package notify formats snapshot diffs for humans and delivers them to a
// Slack incoming webhook. Delivery is best-effort: failures are reported to
// the caller to log, never to abort the run.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/go-wordwrap"

	"github.com/rockcal/rockcal/schema"
)

// maxNames caps how many event names are listed per category.
const maxNames = 5

// Summary renders a ChangeSet as mrkdwn lines, truncating each category's
// names to the first five with an "...and N more" suffix.
func Summary(cs schema.ChangeSet) string {
	if cs.Initial {
		return "Initial schedule published"
	}
	var lines []string
	lines = append(lines, category("Added", cs.Added)...)
	lines = append(lines, category("Removed", cs.Removed)...)
	lines = append(lines, category("Modified", cs.Modified)...)
	if len(lines) == 0 {
		lines = append(lines, "Schedule content has changed")
	}
	return strings.Join(lines, "\n")
}

func category(label string, names []string) []string {
	if len(names) == 0 {
		return nil
	}
	shown := names
	if len(shown) > maxNames {
		shown = shown[:maxNames]
	}
	out := []string{fmt.Sprintf("*%s:* %s", label, strings.Join(shown, ", "))}
	if n := len(names) - maxNames; n > 0 {
		out = append(out, fmt.Sprintf("  ...and %d more", n))
	}
	return out
}

// Notifier delivers change summaries to a Slack incoming webhook.
type Notifier struct {
	// WebhookURL is the Slack incoming webhook. Empty disables delivery.
	WebhookURL string
	// ScheduleURL links the published schedule page on the message button.
	ScheduleURL string
	// CalendarURL links the generated calendar file, if published anywhere.
	CalendarURL string
	// Client overrides the HTTP client. Defaults to a 10s-timeout client.
	Client *http.Client
}

type block struct {
	Type     string  `json:"type"`
	Text     *text   `json:"text,omitempty"`
	Elements []block `json:"elements,omitempty"`
	URL      string  `json:"url,omitempty"`
}

type text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// Send posts the formatted ChangeSet. It is a logged no-op when no webhook
// is configured or when the run is the initial publish (nothing to diff
// against, so nothing worth waking anyone for).
func (n *Notifier) Send(ctx context.Context, cs schema.ChangeSet) error {
	if n.WebhookURL == "" {
		slog.Info("no webhook configured, skipping notification")
		return nil
	}
	if cs.Initial {
		slog.Info("initial run, skipping notification")
		return nil
	}

	summary := Summary(cs)
	blocks := []block{
		{Type: "header", Text: &text{Type: "plain_text", Text: "🚢🎸 Schedule Updated!", Emoji: true}},
		{Type: "section", Text: &text{Type: "mrkdwn", Text: summary}},
	}
	var buttons []block
	if n.ScheduleURL != "" {
		buttons = append(buttons, block{
			Type: "button",
			Text: &text{Type: "plain_text", Text: "View Schedule"},
			URL:  n.ScheduleURL,
		})
	}
	if n.CalendarURL != "" {
		buttons = append(buttons, block{
			Type: "button",
			Text: &text{Type: "plain_text", Text: "Download Calendar"},
			URL:  n.CalendarURL,
		})
	}
	if len(buttons) > 0 {
		blocks = append(blocks, block{Type: "actions", Elements: buttons})
	}

	payload, err := json.Marshal(map[string]any{
		// Plain-text fallback for clients that don't render blocks.
		"text":   wordwrap.WrapString(strings.ReplaceAll(summary, "*", ""), 80),
		"blocks": blocks,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send notification: response status %d", resp.StatusCode)
	}
	slog.Info("notification sent")
	return nil
}
