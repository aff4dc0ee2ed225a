package source_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/debateradar/pkg/source"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want source.Type
		ok   bool
	}{
		{"discussion", source.TypeDiscussion, true},
		{"reddit", source.TypeDiscussion, true},
		{"google_trends", source.TypeTrends, true},
		{"youtube", source.TypeVideo, true},
		{"tiktok", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := source.ParseType(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter(t *testing.T) {
	f := source.NewFilter([]string{"  Celebrity  "})

	assert.True(t, f.Allows("Should voting be mandatory?"))
	assert.False(t, f.Allows("Official Trailer: Dune 3"))
	assert.False(t, f.Allows("celebrity breakup shocks fans"))

	items := []source.Item{{Title: "Daily Discussion thread"}, {Title: "Ban on gas stoves"}}
	assert.Equal(t, []source.Item{{Title: "Ban on gas stoves"}}, f.Apply(items))

	var nilFilter *source.Filter
	assert.True(t, nilFilter.Allows("anything"))
	assert.Len(t, nilFilter.Apply(items), 2)
}

func TestDedupe(t *testing.T) {
	items := []source.Item{
		{ID: "a", Title: "Ban gas  stoves", Score: 10},
		{ID: "b", Title: "Remote work mandates", Score: 5},
		{ID: "c", Title: "ban gas stoves", Score: 30},
		{ID: "d", Title: "BAN GAS STOVES", Score: 20},
	}

	got := source.Dedupe(items, func(it source.Item) float64 { return float64(it.Score) })
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestParseApproxTraffic(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"200,000+", 200000},
		{"2K+", 2000},
		{"1.5M+", 1.5e6},
		{"50", 50},
		{"", 0},
		{"lots", 0},
		{"-5", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, source.ParseApproxTraffic(tt.in), 1e-9)
		})
	}
}

func TestReddit_Collect(t *testing.T) {
	var tokenCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/r/changemyview/hot.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"data":{"children":[
			{"data":{"id":"p0","title":"Rules reminder","stickied":true,"score":1}},
			{"data":{"id":"p1","title":"CMV: Tipping should be abolished","permalink":"/r/changemyview/p1/","score":900,"num_comments":1200,"upvote_ratio":0.52,"created_utc":1760860800}},
			{"data":{"id":"p2","title":"Megathread: election night","score":5000,"num_comments":9000,"upvote_ratio":0.9}},
			{"data":{"id":"p3","title":"cmv:  tipping should be abolished","score":100,"num_comments":10,"upvote_ratio":0.6}}
		]}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := source.NewReddit("id", "secret", []string{"changemyview"}, 10, source.NewFilter(nil), nil,
		source.WithRedditEndpoints(srv.URL+"/token", srv.URL))
	assert.Equal(t, source.TypeDiscussion, r.Name())

	items, err := r.Collect(context.Background())
	require.NoError(t, err)
	// Duplicate titles are left for scoring to resolve.
	require.Len(t, items, 2)
	assert.Equal(t, "reddit:p3", items[1].ID)

	it := items[0]
	assert.Equal(t, "reddit:p1", it.ID)
	assert.Equal(t, source.TypeDiscussion, it.Source)
	assert.Equal(t, "https://reddit.com/r/changemyview/p1/", it.URL)
	assert.Equal(t, 900, it.Score)
	assert.Equal(t, 1200, it.Comments)
	assert.InDelta(t, 0.52, it.UpvoteRatio, 1e-9)
	assert.Equal(t, 1, tokenCalls)
}

func TestReddit_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := source.NewReddit("id", "bad", []string{"news"}, 10, nil, nil,
		source.WithRedditEndpoints(srv.URL+"/token", srv.URL))
	_, err := r.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reddit auth status 401")
}

func TestYouTube_Collect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("key"))
		assert.Equal(t, "GB", r.URL.Query().Get("regionCode"))
		assert.Equal(t, "viewCount", r.URL.Query().Get("order"))
		fmt.Fprint(w, `{"items":[
			{"id":{"videoId":"v1"},"snippet":{"title":"Is nuclear power the answer?","publishedAt":"2026-10-19T08:00:00Z"}},
			{"id":{"videoId":"v2"},"snippet":{"title":"Unboxing the new phone"}},
			{"id":{"videoId":""},"snippet":{"title":"channel result"}}
		]}`)
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "v1,v2", r.URL.Query().Get("id"))
		fmt.Fprint(w, `{"items":[
			{"id":"v1","statistics":{"viewCount":"120000","likeCount":"4000","commentCount":"950"}},
			{"id":"v2","statistics":{"viewCount":"10","likeCount":"1","commentCount":"0"}}
		]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	y := source.NewYouTube("key", []string{"debate"}, "GB", source.NewFilter(nil), nil,
		source.WithYouTubeEndpoint(srv.URL))
	assert.Equal(t, source.TypeVideo, y.Name())

	items, err := y.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	it := items[0]
	assert.Equal(t, "youtube:v1", it.ID)
	assert.Equal(t, "https://www.youtube.com/watch?v=v1", it.URL)
	assert.EqualValues(t, 120000, it.Views)
	assert.Equal(t, 950, it.Comments)
	assert.Equal(t, 4000, it.Score)
}

func TestYouTube_RequiresKey(t *testing.T) {
	_, err := source.NewYouTube("", nil, "", nil, nil).Collect(context.Background())
	assert.Error(t, err)
}

const trendsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:ht="https://trends.google.com/trending/rss">
<channel>
<title>Daily Search Trends</title>
<item>
  <title>minimum wage increase</title>
  <ht:approx_traffic>200,000+</ht:approx_traffic>
  <link>https://trends.google.com/trending?geo=US</link>
  <pubDate>Sun, 19 Oct 2026 06:00:00 -0700</pubDate>
  <guid>t1</guid>
</item>
<item>
  <title>school phone ban</title>
  <ht:approx_traffic>50K+</ht:approx_traffic>
  <guid>t2</guid>
</item>
<item>
  <title>lakers highlights</title>
  <ht:approx_traffic>500,000+</ht:approx_traffic>
  <guid>t3</guid>
</item>
</channel>
</rss>`

func TestGoogleTrends_Collect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "US", r.URL.Query().Get("geo"))
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, trendsFeed)
	}))
	defer srv.Close()

	g := source.NewGoogleTrends("US", source.NewFilter(nil), nil, source.WithTrendsFeedURL(srv.URL))
	assert.Equal(t, source.TypeTrends, g.Name())

	items, err := g.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	// volume is relative to the busiest entry of the feed, including filtered ones
	assert.Equal(t, "minimum wage increase", items[0].Title)
	assert.Equal(t, "trends:US:t1", items[0].ID)
	assert.InDelta(t, 40, items[0].Volume, 1e-9)
	assert.Equal(t, 200000, items[0].Score)
	assert.InDelta(t, 10, items[1].Volume, 1e-9)
}

func TestGoogleTrends_FeedURLWithQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en", r.URL.Query().Get("hl"))
		assert.Equal(t, "GB&x=1", r.URL.Query().Get("geo"))
		fmt.Fprint(w, trendsFeed)
	}))
	defer srv.Close()

	g := source.NewGoogleTrends("GB&x=1", nil, nil, source.WithTrendsFeedURL(srv.URL+"?hl=en"))
	items, err := g.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestGoogleTrends_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := source.NewGoogleTrends("US", nil, nil, source.WithTrendsFeedURL(srv.URL)).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trends feed status 429")
}
