package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(map[string]any{"blocks": slackBlocks(n)})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode)
	}

	return nil
}

// slackBlocks renders the notification as Block Kit blocks.
func slackBlocks(n *Notification) []map[string]any {
	header := fmt.Sprintf("Debate of the day: %s", n.Title)

	meta := fmt.Sprintf("*Category:* %s", n.Category)
	if len(n.Sources) > 0 {
		meta += fmt.Sprintf(" | *Score:* %.2f | *Sources:* %s", n.Score, strings.Join(n.Sources, ", "))
	}

	text := fmt.Sprintf("*%s*\n%s\n%s", n.Question, n.Summary, meta)
	if len(n.ArgumentsFor) > 0 || len(n.ArgumentsAgainst) > 0 {
		text += "\n\n*Yes:* " + strings.Join(n.ArgumentsFor, "; ") +
			"\n*No:* " + strings.Join(n.ArgumentsAgainst, "; ")
	}

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": header},
		},
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": text},
		},
	}

	if len(n.Links) > 0 {
		limit := min(len(n.Links), 5)
		elements := make([]map[string]any, 0, limit)
		for _, l := range n.Links[:limit] {
			elements = append(elements, map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("<%s|%s> [%s]", l.URL, l.Title, l.Source),
			})
		}
		blocks = append(blocks, map[string]any{
			"type":     "context",
			"elements": elements,
		})
	}
	return blocks
}
