package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/debateradar/internal/store"
	"github.com/elonfeng/debateradar/pkg/source"
	"github.com/elonfeng/debateradar/pkg/trend"
)

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	run, err := s.CreateRun(ctx, "2026-10-19", trend.DefaultConfig().Weights)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)

	// unfinished runs are not reported
	_, err = s.LatestRun(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	run.SourceCounts = map[string]int{"discussion": 12, "trends": 0}
	run.SourceErrors = map[string]string{"trends": "timeout"}
	run.Clusters = 9
	require.NoError(t, s.FinishRun(ctx, run))
	require.NotNil(t, run.FinishedAt)

	got, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "2026-10-19", got.Date)
	assert.Equal(t, 12, got.SourceCounts["discussion"])
	assert.Equal(t, "timeout", got.SourceErrors["trends"])
	assert.Equal(t, 9, got.Clusters)
	assert.InDelta(t, 0.35, got.Weights.Discussion, 1e-9)
	assert.NotNil(t, got.FinishedAt)
}

func TestSaveAndListCandidates(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	run, err := s.CreateRun(ctx, "2026-10-19", trend.DefaultConfig().Weights)
	require.NoError(t, err)

	ranked := []trend.Ranked{
		{
			Title:               "Should tipping culture be abolished?",
			CompositeScore:      0.8,
			ContributingSources: []source.Type{source.TypeDiscussion, source.TypeVideo},
			PerSourceSignals: map[source.Type]float64{
				source.TypeDiscussion: 0.9, source.TypeTrends: 0, source.TypeVideo: 0.5,
			},
			Members: []trend.Member{{Source: source.TypeDiscussion, Title: "Should tipping culture be abolished?", Value: 0.9}},
		},
		{
			Title:               "Four day work week",
			CompositeScore:      0.4,
			ContributingSources: []source.Type{source.TypeTrends},
			PerSourceSignals: map[source.Type]float64{
				source.TypeDiscussion: 0, source.TypeTrends: 0.7, source.TypeVideo: 0,
			},
		},
	}
	require.NoError(t, s.SaveCandidates(ctx, run.ID, ranked))

	got, err := s.ListCandidates(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, "Should tipping culture be abolished?", got[0].Title)
	assert.Equal(t, []string{"discussion", "video"}, got[0].Sources)
	assert.InDelta(t, 0.5, got[0].Signals["video"], 1e-9)
	require.Len(t, got[0].Members, 1)
	assert.Equal(t, source.TypeDiscussion, got[0].Members[0].Source)

	assert.Equal(t, 2, got[1].Rank)
	assert.Equal(t, []string{"trends"}, got[1].Sources)

	other, err := s.ListCandidates(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestTopics(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.GetTopicByDate(ctx, "2026-10-19")
	assert.ErrorIs(t, err, store.ErrNotFound)

	for _, tp := range []store.Topic{
		{Date: "2026-10-17", Title: "Is remote work here to stay?", Category: "economy"},
		{Date: "2026-10-18", Title: "Should voting be mandatory?", Category: "politics"},
		{Date: "2026-10-19", Title: "Should tipping be abolished?", ArgumentsFor: []string{"Fair wages"}},
	} {
		tp := tp
		require.NoError(t, s.SaveTopic(ctx, &tp))
		assert.NotZero(t, tp.ID)
	}

	got, err := s.GetTopicByDate(ctx, "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, "Should tipping be abolished?", got.Title)
	assert.Equal(t, []string{"Fair wages"}, got.ArgumentsFor)
	assert.Equal(t, []string{}, got.ArgumentsAgainst)

	// a second pick for the same date replaces the first
	require.NoError(t, s.SaveTopic(ctx, &store.Topic{Date: "2026-10-19", Title: "Should zoos exist?"}))
	got, err = s.GetTopicByDate(ctx, "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, "Should zoos exist?", got.Title)

	all, err := s.ListTopics(ctx, store.TopicListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2026-10-19", all[0].Date)

	limited, err := s.ListTopics(ctx, store.TopicListOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	since, err := s.ListTopics(ctx, store.TopicListOpts{Since: "2026-10-18"})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	titles, err := s.RecentTitles(ctx, "2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, []string{"Should zoos exist?", "Should voting be mandatory?"}, titles)
}
