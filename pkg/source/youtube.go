package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const youtubeAPIURL = "https://www.googleapis.com/youtube/v3"

// YouTube collects the most viewed recent videos for news-style queries.
type YouTube struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
	filter  *Filter
	apiURL  string
	apiKey  string
	queries []string
	region  string
}

// YouTubeOption customizes a YouTube adapter.
type YouTubeOption func(*YouTube)

// WithYouTubeEndpoint overrides the Data API base URL.
func WithYouTubeEndpoint(apiURL string) YouTubeOption {
	return func(y *YouTube) { y.apiURL = strings.TrimRight(apiURL, "/") }
}

// NewYouTube creates a new YouTube adapter.
func NewYouTube(apiKey string, queries []string, region string, filter *Filter, logger *log.Logger, opts ...YouTubeOption) *YouTube {
	if len(queries) == 0 {
		queries = []string{"news today", "debate", "controversy"}
	}
	if region == "" {
		region = "US"
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	y := &YouTube{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 2),
		logger:  logger,
		filter:  filter,
		apiURL:  youtubeAPIURL,
		apiKey:  apiKey,
		queries: queries,
		region:  region,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *YouTube) Name() Type { return TypeVideo }

func (y *YouTube) Collect(ctx context.Context) ([]Item, error) {
	if y.apiKey == "" {
		return nil, fmt.Errorf("youtube: API key required (set YOUTUBE_API_KEY)")
	}

	var allItems []Item
	seen := make(map[string]bool)

	for _, query := range y.queries {
		items, err := y.search(ctx, query)
		if err != nil {
			y.logger.Warn("youtube search failed", "query", query, "err", err)
			continue
		}
		for _, item := range items {
			if seen[item.ExternalID] {
				continue
			}
			seen[item.ExternalID] = true
			allItems = append(allItems, item)
		}
	}

	if len(allItems) > 0 {
		y.enrichWithStats(ctx, allItems)
	}

	return y.filter.Apply(allItems), nil
}

func (y *YouTube) search(ctx context.Context, query string) ([]Item, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("order", "viewCount")
	params.Set("regionCode", y.region)
	params.Set("publishedAfter", time.Now().Add(-24*time.Hour).Format(time.RFC3339))
	params.Set("maxResults", "25")
	params.Set("key", y.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.apiURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create youtube search request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch youtube search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube search status %d", resp.StatusCode)
	}

	var result ytSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode youtube search: %w", err)
	}

	var items []Item
	for _, item := range result.Items {
		videoID := item.ID.VideoID
		if videoID == "" {
			continue
		}

		published := item.Snippet.PublishedAt
		if published.IsZero() {
			published = time.Now().UTC()
		}

		items = append(items, Item{
			ID:          fmt.Sprintf("youtube:%s", videoID),
			Source:      TypeVideo,
			ExternalID:  videoID,
			Title:       item.Snippet.Title,
			URL:         fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID),
			PublishedAt: published,
			CollectedAt: time.Now().UTC(),
		})
	}

	return items, nil
}

// enrichWithStats fills view and comment counts in batches of 50 ids.
// Videos whose statistics cannot be fetched keep zero counts.
func (y *YouTube) enrichWithStats(ctx context.Context, items []Item) {
	idMap := make(map[string]int, len(items))
	ids := make([]string, 0, len(items))
	for i, item := range items {
		ids = append(ids, item.ExternalID)
		idMap[item.ExternalID] = i
	}

	for start := 0; start < len(ids); start += 50 {
		end := min(start+50, len(ids))
		if err := y.fetchStats(ctx, ids[start:end], idMap, items); err != nil {
			y.logger.Warn("youtube statistics failed", "batch_start", start, "err", err)
		}
	}
}

func (y *YouTube) fetchStats(ctx context.Context, batch []string, idMap map[string]int, items []Item) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("part", "statistics")
	params.Set("id", strings.Join(batch, ","))
	params.Set("key", y.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.apiURL+"/videos?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create youtube videos request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch youtube videos: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("youtube videos status %d", resp.StatusCode)
	}

	var result ytVideoResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode youtube videos: %w", err)
	}

	for _, video := range result.Items {
		if idx, ok := idMap[video.ID]; ok {
			items[idx].Views = video.Statistics.ViewCount
			items[idx].Comments = int(video.Statistics.CommentCount)
			items[idx].Score = int(video.Statistics.LikeCount)
		}
	}
	return nil
}

type ytSearchResult struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet ytSnippet `json:"snippet"`
	} `json:"items"`
}

type ytSnippet struct {
	Title        string    `json:"title"`
	ChannelTitle string    `json:"channelTitle"`
	PublishedAt  time.Time `json:"publishedAt"`
}

type ytVideoResult struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    int64 `json:"viewCount,string"`
			LikeCount    int64 `json:"likeCount,string"`
			CommentCount int64 `json:"commentCount,string"`
		} `json:"statistics"`
	} `json:"items"`
}
