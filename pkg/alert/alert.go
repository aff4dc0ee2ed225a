package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/elonfeng/debateradar/pkg/decide"
	"github.com/elonfeng/debateradar/pkg/trend"
)

// Link points at one piece of coverage behind the selected topic.
type Link struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// Notification announces the day's selected debate topic.
type Notification struct {
	Date             string   `json:"date"`
	Title            string   `json:"title"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	Summary          string   `json:"summary"`
	ArgumentsFor     []string `json:"arguments_for"`
	ArgumentsAgainst []string `json:"arguments_against"`
	Score            float64  `json:"score"`
	Sources          []string `json:"sources"`
	Links            []Link   `json:"links,omitempty"`
}

// NewNotification builds a notification for a decision, attaching the score,
// sources and links of the ranked candidate it was based on, if any.
func NewNotification(date string, d *decide.Decision, ranked []trend.Ranked) *Notification {
	n := &Notification{
		Date:             date,
		Title:            d.Title,
		Category:         d.Category,
		Question:         d.Question,
		Summary:          d.Summary,
		ArgumentsFor:     d.ArgumentsFor,
		ArgumentsAgainst: d.ArgumentsAgainst,
		Sources:          []string{},
	}

	if d.Candidate == "" {
		return n
	}
	for _, r := range ranked {
		if r.Title != d.Candidate {
			continue
		}
		n.Score = r.CompositeScore
		for _, s := range r.ContributingSources {
			n.Sources = append(n.Sources, string(s))
		}
		for _, m := range r.Members {
			if m.URL == "" {
				continue
			}
			n.Links = append(n.Links, Link{Source: string(m.Source), Title: m.Title, URL: m.URL})
		}
		break
	}
	return n
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
