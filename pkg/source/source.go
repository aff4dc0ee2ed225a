package source

import (
	"context"
	"time"
)

// Type identifies which kind of platform a candidate came from.
type Type string

const (
	// TypeDiscussion is a social-discussion platform (Reddit).
	TypeDiscussion Type = "discussion"
	// TypeTrends is a search-trends feed (Google Trends).
	TypeTrends Type = "trends"
	// TypeVideo is a video platform (YouTube).
	TypeVideo Type = "video"
)

// Item is the normalized raw candidate every adapter returns.
// Metrics a platform does not expose are left at zero.
type Item struct {
	ID          string    `json:"id"`
	Source      Type      `json:"source"`
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Score       int       `json:"score"`
	Comments    int       `json:"comments"`
	UpvoteRatio float64   `json:"upvote_ratio,omitempty"`
	Volume      float64   `json:"volume,omitempty"`
	Views       int64     `json:"views,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	CollectedAt time.Time `json:"collected_at"`
}

// Source is the interface every adapter must implement.
type Source interface {
	Name() Type
	Collect(ctx context.Context) ([]Item, error)
}

// AllTypes returns every source type in the default fan-in order.
func AllTypes() []Type {
	return []Type{
		TypeDiscussion,
		TypeTrends,
		TypeVideo,
	}
}

// ParseType maps a type name or platform alias to a Type.
func ParseType(s string) (Type, bool) {
	switch s {
	case "discussion", "reddit":
		return TypeDiscussion, true
	case "trends", "google_trends", "googletrends":
		return TypeTrends, true
	case "video", "youtube":
		return TypeVideo, true
	}
	return "", false
}
