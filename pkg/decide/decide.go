// Package decide asks an external language model to pick the day's debate
// topic from the ranked candidates and to write its framing.
package decide

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/elonfeng/debateradar/pkg/trend"
)

const selectPrompt = `You are the editor of a daily debate app. Every day you publish exactly one topic that people can reasonably disagree about.

Below are today's candidate topics collected from Reddit, Google Trends and YouTube, ranked by a divisiveness and reach signal (higher composite is better). Sources lists the platforms where the topic appeared.

Candidates:
%s

Topics published recently (do NOT pick any of these or a rewording of them):
%s

Pick the single best candidate. Prefer topics with two defensible sides. Avoid tragedies, pure celebrity gossip, and topics that only make sense with breaking-news context.

Respond with a JSON object with these fields:
- "title": short neutral headline for the topic
- "category": one of politics, society, technology, economy, culture, science, sports, other
- "question": the debate question, answerable yes or no
- "summary": 2-3 sentence neutral background
- "arguments_for": array of 2-3 short arguments for "yes"
- "arguments_against": array of 2-3 short arguments for "no"
- "candidate": the exact candidate title you picked

Return ONLY the JSON object, no other text.`

const fallbackPrompt = `You are the editor of a daily debate app. Every day you publish exactly one topic that people can reasonably disagree about.

No trending candidates are available today. Propose an evergreen debate topic instead.

Topics published recently (do NOT pick any of these or a rewording of them):
%s

Respond with a JSON object with these fields:
- "title": short neutral headline for the topic
- "category": one of politics, society, technology, economy, culture, science, sports, other
- "question": the debate question, answerable yes or no
- "summary": 2-3 sentence neutral background
- "arguments_for": array of 2-3 short arguments for "yes"
- "arguments_against": array of 2-3 short arguments for "no"
- "candidate": empty string

Return ONLY the JSON object, no other text.`

// ErrEmptyDecision is returned when the model answers without a title.
var ErrEmptyDecision = errors.New("decision has no title")

// Decision is the topic chosen by the model.
type Decision struct {
	Title            string   `json:"title"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	Summary          string   `json:"summary"`
	ArgumentsFor     []string `json:"arguments_for"`
	ArgumentsAgainst []string `json:"arguments_against"`
	// Candidate is the ranked title the decision was based on, empty for fallback picks.
	Candidate string `json:"candidate"`
}

// Decider is anything that can choose a topic from ranked candidates.
type Decider interface {
	Decide(ctx context.Context, candidates []trend.Ranked, recent []string) (*Decision, error)
}

// LLM is a Decider backed by an OpenAI or Anthropic compatible API.
type LLM struct {
	client   *http.Client
	provider string // "openai" or "anthropic"
	model    string
	apiKey   string
	baseURL  string
}

// NewLLM creates a new LLM decider.
func NewLLM(provider, model, apiKey, baseURL string) *LLM {
	if model == "" {
		switch provider {
		case "anthropic":
			model = "claude-sonnet-4-20250514"
		default:
			model = "gpt-4o-mini"
		}
	}
	return &LLM{
		client:   &http.Client{Timeout: 90 * time.Second},
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Name identifies the provider and model for logging.
func (l *LLM) Name() string {
	return l.provider + "/" + l.model
}

// Decide sends the ranked candidates and the recent history in one call.
// With no candidates it asks for an evergreen topic instead.
func (l *LLM) Decide(ctx context.Context, candidates []trend.Ranked, recent []string) (*Decision, error) {
	prompt := BuildPrompt(candidates, recent)

	var (
		raw string
		err error
	)
	switch l.provider {
	case "anthropic":
		raw, err = l.callAnthropic(ctx, prompt)
	default:
		raw, err = l.callOpenAI(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}

	return ParseDecision(raw)
}

// BuildPrompt renders the prompt for the given candidates and history.
func BuildPrompt(candidates []trend.Ranked, recent []string) string {
	history := "(none)"
	if len(recent) > 0 {
		lines := make([]string, len(recent))
		for i, t := range recent {
			lines[i] = "- " + t
		}
		history = strings.Join(lines, "\n")
	}

	if len(candidates) == 0 {
		return fmt.Sprintf(fallbackPrompt, history)
	}

	lines := make([]string, len(candidates))
	for i, c := range candidates {
		sources := make([]string, len(c.ContributingSources))
		for j, s := range c.ContributingSources {
			sources[j] = string(s)
		}
		lines[i] = fmt.Sprintf("%d. %s | composite: %.3f | sources: %s",
			i+1, c.Title, c.CompositeScore, strings.Join(sources, ","))
	}
	return fmt.Sprintf(selectPrompt, strings.Join(lines, "\n"), history)
}

// ParseDecision decodes the model's reply, tolerating a fenced code block.
func ParseDecision(raw string) (*Decision, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw[3:], "\n"); idx >= 0 {
			raw = raw[3+idx+1:]
		}
		raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "```"))
	}

	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("parse decision: %w\nraw: %s", err, truncateStr(raw, 500))
	}
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return nil, ErrEmptyDecision
	}
	return &d, nil
}

func (l *LLM) callOpenAI(ctx context.Context, prompt string) (string, error) {
	baseURL := l.baseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	payload := map[string]any{
		"model": l.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature":     0.4,
		"response_format": map[string]string{"type": "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal openai request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call openai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("openai status %d: %v", resp.StatusCode, errResp)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}

func (l *LLM) callAnthropic(ctx context.Context, prompt string) (string, error) {
	baseURL := l.baseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	payload := map[string]any{
		"model":      l.model,
		"max_tokens": 2048,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal anthropic request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", l.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call anthropic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("anthropic status %d: %v", resp.StatusCode, errResp)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}

	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic: no content returned")
	}
	return result.Content[0].Text, nil
}

// truncateStr keeps at most n runes of s.
func truncateStr(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
