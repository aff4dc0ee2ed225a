package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

const googleTrendsFeedURL = "https://trends.google.com/trending/rss"

// GoogleTrends collects daily trending searches from the Google Trends RSS feed.
type GoogleTrends struct {
	client  *http.Client
	parser  *gofeed.Parser
	limiter *rate.Limiter
	logger  *log.Logger
	filter  *Filter
	feedURL string
	geo     string
}

// TrendsOption customizes a GoogleTrends adapter.
type TrendsOption func(*GoogleTrends)

// WithTrendsFeedURL overrides the trending searches feed URL.
func WithTrendsFeedURL(feedURL string) TrendsOption {
	return func(g *GoogleTrends) { g.feedURL = feedURL }
}

// NewGoogleTrends creates a new Google Trends adapter for a region.
func NewGoogleTrends(geo string, filter *Filter, logger *log.Logger, opts ...TrendsOption) *GoogleTrends {
	if geo == "" {
		geo = "US"
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	g := &GoogleTrends{
		client:  &http.Client{Timeout: 30 * time.Second},
		parser:  gofeed.NewParser(),
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		logger:  logger,
		filter:  filter,
		feedURL: googleTrendsFeedURL,
		geo:     geo,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GoogleTrends) Name() Type { return TypeTrends }

// Collect fetches the feed and converts approximate traffic into a relative
// volume in [0,100], where the busiest search of the batch is 100.
func (g *GoogleTrends) Collect(ctx context.Context) ([]Item, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u, err := url.Parse(g.feedURL)
	if err != nil {
		return nil, fmt.Errorf("parse trends feed url: %w", err)
	}
	q := u.Query()
	q.Set("geo", g.geo)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create trends request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch trends feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trends feed status %d", resp.StatusCode)
	}

	parsed, err := g.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse trends feed: %w", err)
	}

	var (
		items   []Item
		traffic []float64
		peak    float64
	)
	for _, entry := range parsed.Items {
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			continue
		}

		published := time.Now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		}

		approx := ParseApproxTraffic(extensionValue(entry, "ht", "approx_traffic"))
		if approx > peak {
			peak = approx
		}

		guid := entry.GUID
		if guid == "" {
			guid = title
		}

		items = append(items, Item{
			ID:          fmt.Sprintf("trends:%s:%s", g.geo, guid),
			Source:      TypeTrends,
			ExternalID:  guid,
			Title:       title,
			URL:         entry.Link,
			Score:       int(approx),
			PublishedAt: published,
			CollectedAt: time.Now().UTC(),
		})
		traffic = append(traffic, approx)
	}

	for i := range items {
		if peak > 0 {
			items[i].Volume = traffic[i] / peak * 100
		}
	}

	items = g.filter.Apply(items)
	g.logger.Debug("trends feed parsed", "geo", g.geo, "entries", len(parsed.Items), "kept", len(items))
	return items, nil
}

func extensionValue(entry *gofeed.Item, namespace, name string) string {
	if entry.Extensions == nil {
		return ""
	}
	exts := entry.Extensions[namespace][name]
	if len(exts) == 0 {
		return ""
	}
	return exts[0].Value
}

// ParseApproxTraffic converts labels such as "200,000+", "2K+" or "1.5M+" into a number.
// Unparseable labels yield 0.
func ParseApproxTraffic(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "+"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}

	mult := 1.0
	switch strings.ToUpper(s[len(s)-1:]) {
	case "K":
		mult = 1e3
		s = s[:len(s)-1]
	case "M":
		mult = 1e6
		s = s[:len(s)-1]
	case "B":
		mult = 1e9
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v * mult
}
