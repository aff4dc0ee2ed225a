package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/debateradar/internal/pipeline"
	"github.com/elonfeng/debateradar/internal/store"
	"github.com/elonfeng/debateradar/pkg/alert"
	"github.com/elonfeng/debateradar/pkg/decide"
	"github.com/elonfeng/debateradar/pkg/source"
	"github.com/elonfeng/debateradar/pkg/trend"
)

type fakeSource struct {
	name  source.Type
	items []source.Item
	err   error
	block bool
}

func (f *fakeSource) Name() source.Type { return f.name }

func (f *fakeSource) Collect(ctx context.Context) ([]source.Item, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.items, f.err
}

// gatedSource blocks in Collect until release is closed.
type gatedSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedSource() *gatedSource {
	return &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSource) Name() source.Type { return source.TypeDiscussion }

func (g *gatedSource) Collect(ctx context.Context) ([]source.Item, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return []source.Item{{Title: "Should tipping be abolished?", UpvoteRatio: 0.5, Comments: 300, Score: 200}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeDecider struct {
	mu         sync.Mutex
	candidates []trend.Ranked
	recent     []string
	err        error
}

func (f *fakeDecider) Decide(_ context.Context, candidates []trend.Ranked, recent []string) (*decide.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = candidates
	f.recent = recent
	if f.err != nil {
		return nil, f.err
	}
	if len(candidates) == 0 {
		return &decide.Decision{Title: "Should homework be banned?", Category: "society"}, nil
	}
	return &decide.Decision{
		Title:     "Tipping debate",
		Category:  "economy",
		Question:  "Should tipping be abolished?",
		Candidate: candidates[0].Title,
	}, nil
}

type recordingNotifier struct {
	got []*alert.Notification
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Send(_ context.Context, n *alert.Notification) error {
	r.got = append(r.got, n)
	return nil
}

func sources() []source.Source {
	return []source.Source{
		&fakeSource{name: source.TypeVideo, items: []source.Item{
			{Title: "Tipping culture has gone way too far", Comments: 500, Views: 100000},
		}},
		&fakeSource{name: source.TypeDiscussion, items: []source.Item{
			{Title: "Tipping culture has gone too far", UpvoteRatio: 0.55, Comments: 2400, Score: 9000},
			{Title: "Mars rover finds water ice deposits", UpvoteRatio: 0.97, Comments: 40, Score: 300},
		}},
		&fakeSource{name: source.TypeTrends, err: errors.New("feed down")},
	}
}

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCollect_FanInOrderAndErrors(t *testing.T) {
	o := pipeline.New(pipeline.Options{Sources: sources()})

	col := o.Collect(context.Background())

	require.Len(t, col.Batches, 3)
	assert.Equal(t, source.TypeDiscussion, col.Batches[0].Source)
	assert.Equal(t, source.TypeTrends, col.Batches[1].Source)
	assert.Equal(t, source.TypeVideo, col.Batches[2].Source)
	assert.Empty(t, col.Batches[1].Items)

	require.Contains(t, col.Errors, source.TypeTrends)
	assert.EqualError(t, col.Errors[source.TypeTrends], "feed down")
	assert.Equal(t, map[string]int{"discussion": 2, "trends": 0, "video": 1}, col.Counts())
}

func TestCollect_TimeoutDoesNotBlockOthers(t *testing.T) {
	srcs := []source.Source{
		&fakeSource{name: source.TypeTrends, block: true},
		&fakeSource{name: source.TypeDiscussion, items: []source.Item{{Title: "Ban gas stoves nationwide"}}},
	}
	o := pipeline.New(pipeline.Options{Sources: srcs, Timeout: 50 * time.Millisecond})

	col := o.Collect(context.Background())
	assert.ErrorIs(t, col.Errors[source.TypeTrends], context.DeadlineExceeded)
	assert.Len(t, col.Batches[0].Items, 1)
}

func TestRank_TitleFromFirstSourceInOrder(t *testing.T) {
	o := pipeline.New(pipeline.Options{Sources: sources()})

	ranked, _ := o.Rank(context.Background())
	require.NotEmpty(t, ranked)
	assert.Equal(t, "Tipping culture has gone too far", ranked[0].Title)
	assert.Equal(t, []source.Type{source.TypeDiscussion, source.TypeVideo}, ranked[0].ContributingSources)

	o = pipeline.New(pipeline.Options{
		Sources: sources(),
		Order:   []source.Type{source.TypeVideo, source.TypeDiscussion, source.TypeTrends},
	})
	ranked, _ = o.Rank(context.Background())
	assert.Equal(t, "Tipping culture has gone way too far", ranked[0].Title)
}

func TestRun_PersistsAndDecides(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	require.NoError(t, st.SaveTopic(ctx, &store.Topic{Date: "2026-10-10", Title: "Is remote work here to stay?"}))
	require.NoError(t, st.SaveTopic(ctx, &store.Topic{Date: "2026-08-01", Title: "Too old to matter"}))

	dec := &fakeDecider{}
	rec := &recordingNotifier{}
	o := pipeline.New(pipeline.Options{
		Sources:     sources(),
		Store:       st,
		Decider:     dec,
		Alerts:      alert.NewManager([]alert.Notifier{rec}),
		HistoryDays: 30,
	})

	res, err := o.Run(ctx, "2026-10-19")
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Clusters)
	assert.Equal(t, "feed down", res.SourceErrors["trends"])
	require.NotNil(t, res.Decision)
	assert.Equal(t, "Tipping culture has gone too far", res.Decision.Candidate)

	assert.Equal(t, []string{"Is remote work here to stay?"}, dec.recent)
	assert.Len(t, dec.candidates, 2)

	run, err := st.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, 2, run.SourceCounts["discussion"])

	cands, err := st.ListCandidates(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "Tipping culture has gone too far", cands[0].Title)

	topic, err := st.GetTopicByDate(ctx, "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, "Tipping debate", topic.Title)
	assert.Equal(t, res.RunID, topic.RunID)

	require.Len(t, rec.got, 1)
	assert.Equal(t, "Should tipping be abolished?", rec.got[0].Question)
	assert.Equal(t, []string{"discussion", "video"}, rec.got[0].Sources)
}

func TestRun_NoCandidatesFallsBack(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	dec := &fakeDecider{}
	o := pipeline.New(pipeline.Options{
		Sources: []source.Source{&fakeSource{name: source.TypeDiscussion, err: errors.New("401")}},
		Store:   st,
		Decider: dec,
	})

	res, err := o.Run(ctx, "2026-10-19")
	require.NoError(t, err)
	assert.Empty(t, res.Ranked)
	assert.NotNil(t, res.Ranked)
	assert.Equal(t, "Should homework be banned?", res.Decision.Title)
	assert.Empty(t, res.Decision.Candidate)
}

func TestRun_WithoutDecider(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	o := pipeline.New(pipeline.Options{Sources: sources(), Store: st})

	res, err := o.Run(ctx, "2026-10-19")
	require.NoError(t, err)
	assert.Nil(t, res.Decision)

	_, err = st.GetTopicByDate(ctx, "2026-10-19")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRun_DeciderErrorKeepsCandidates(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	o := pipeline.New(pipeline.Options{
		Sources: sources(),
		Store:   st,
		Decider: &fakeDecider{err: errors.New("quota")},
	})

	res, err := o.Run(ctx, "2026-10-19")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decide topic: quota")
	require.NotNil(t, res)

	cands, err := st.ListCandidates(ctx, res.RunID)
	require.NoError(t, err)
	assert.Len(t, cands, 2)
}

func TestRun_RejectsBadDate(t *testing.T) {
	o := pipeline.New(pipeline.Options{Store: openStore(t)})
	_, err := o.Run(context.Background(), "19/10/2026")
	assert.Error(t, err)
}

func TestRun_RequiresStore(t *testing.T) {
	_, err := pipeline.New(pipeline.Options{}).Run(context.Background(), "")
	assert.Error(t, err)
}

func TestRun_ConcurrentRunIsBusy(t *testing.T) {
	ctx := context.Background()
	gate := newGatedSource()
	o := pipeline.New(pipeline.Options{Sources: []source.Source{gate}, Store: openStore(t)})

	type outcome struct {
		res *pipeline.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := o.Run(ctx, "2026-10-19")
		done <- outcome{res, err}
	}()

	select {
	case <-gate.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached collection")
	}

	_, err := o.Run(ctx, "2026-10-19")
	assert.ErrorIs(t, err, pipeline.ErrBusy)

	close(gate.release)
	first := <-done
	require.NoError(t, first.err)
	require.Len(t, first.res.Ranked, 1)

	// The lock is released once the first run finishes.
	second, err := o.Run(ctx, "2026-10-19")
	require.NoError(t, err)
	assert.NotEqual(t, first.res.RunID, second.RunID)
}
