package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	redditAuthURL = "https://www.reddit.com/api/v1/access_token"
	redditAPIURL  = "https://oauth.reddit.com"
	userAgent     = "debateradar/1.0"
)

// Reddit collects hot posts from discussion-heavy subreddits.
type Reddit struct {
	client       *http.Client
	limiter      *rate.Limiter
	logger       *log.Logger
	filter       *Filter
	authURL      string
	apiURL       string
	clientID     string
	clientSecret string
	subreddits   []string
	limit        int
	mu           sync.Mutex
	token        string
	tokenExpiry  time.Time
}

// RedditOption customizes a Reddit adapter.
type RedditOption func(*Reddit)

// WithRedditEndpoints overrides the auth and API base URLs.
func WithRedditEndpoints(authURL, apiURL string) RedditOption {
	return func(r *Reddit) {
		r.authURL = authURL
		r.apiURL = strings.TrimRight(apiURL, "/")
	}
}

// NewReddit creates a new Reddit adapter.
func NewReddit(clientID, clientSecret string, subreddits []string, limit int, filter *Filter, logger *log.Logger, opts ...RedditOption) *Reddit {
	if len(subreddits) == 0 {
		subreddits = []string{
			"politics", "worldnews", "news",
			"changemyview", "unpopularopinion", "TrueReddit",
		}
	}
	if limit <= 0 {
		limit = 50
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	r := &Reddit{
		client:       &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
		logger:       logger,
		filter:       filter,
		authURL:      redditAuthURL,
		apiURL:       redditAPIURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		subreddits:   subreddits,
		limit:        limit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reddit) Name() Type { return TypeDiscussion }

func (r *Reddit) Collect(ctx context.Context) ([]Item, error) {
	if err := r.authenticate(ctx); err != nil {
		return nil, fmt.Errorf("reddit auth: %w", err)
	}

	var allItems []Item
	for _, sub := range r.subreddits {
		items, err := r.fetchSubreddit(ctx, sub)
		if err != nil {
			r.logger.Warn("subreddit fetch failed", "subreddit", sub, "err", err)
			continue
		}
		allItems = append(allItems, items...)
	}

	return r.filter.Apply(allItems), nil
}

func (r *Reddit) authenticate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token != "" && time.Now().Before(r.tokenExpiry) {
		return nil
	}

	data := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.authURL, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}

	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("reddit token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reddit auth status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("decode reddit token: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return fmt.Errorf("reddit auth: empty access token")
	}

	r.token = tokenResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return nil
}

func (r *Reddit) fetchSubreddit(ctx context.Context, subreddit string) ([]Item, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", r.apiURL, url.PathEscape(subreddit), r.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	req.Header.Set("Authorization", "Bearer "+r.token)
	r.mu.Unlock()
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch r/%s: %w", subreddit, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit r/%s status %d", subreddit, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode r/%s: %w", subreddit, err)
	}

	var items []Item
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied || strings.TrimSpace(post.Title) == "" {
			continue
		}

		items = append(items, Item{
			ID:          fmt.Sprintf("reddit:%s", post.ID),
			Source:      TypeDiscussion,
			ExternalID:  post.ID,
			Title:       post.Title,
			URL:         "https://reddit.com" + post.Permalink,
			Score:       post.Score,
			Comments:    post.NumComments,
			UpvoteRatio: post.UpvoteRatio,
			PublishedAt: time.Unix(int64(post.CreatedUTC), 0).UTC(),
			CollectedAt: time.Now().UTC(),
		})
	}

	return items, nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
	UpvoteRatio float64 `json:"upvote_ratio"`
}
