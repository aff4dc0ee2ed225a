// Package pipeline runs one end-to-end topic selection: collect from every
// adapter, rank, ask the decider, persist and announce.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/debateradar/internal/store"
	"github.com/elonfeng/debateradar/pkg/alert"
	"github.com/elonfeng/debateradar/pkg/decide"
	"github.com/elonfeng/debateradar/pkg/source"
	"github.com/elonfeng/debateradar/pkg/trend"
)

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("pipeline run already in progress")

const defaultTimeout = 60 * time.Second

// Options configures an Orchestrator. Store is required for Run; Decider
// and Alerts are optional.
type Options struct {
	Sources     []source.Source
	Order       []source.Type
	Engine      *trend.Engine
	Store       store.Store
	Decider     decide.Decider
	Alerts      *alert.Manager
	Logger      *log.Logger
	Timeout     time.Duration
	HistoryDays int
	Location    *time.Location
}

// Orchestrator wires adapters, the ranking engine, the decider, storage
// and notifiers together.
type Orchestrator struct {
	sources     []source.Source
	order       []source.Type
	engine      *trend.Engine
	store       store.Store
	decider     decide.Decider
	alerts      *alert.Manager
	logger      *log.Logger
	timeout     time.Duration
	historyDays int
	loc         *time.Location
	now         func() time.Time

	mu sync.Mutex
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		sources:     opts.Sources,
		order:       opts.Order,
		engine:      opts.Engine,
		store:       opts.Store,
		decider:     opts.Decider,
		alerts:      opts.Alerts,
		logger:      opts.Logger,
		timeout:     opts.Timeout,
		historyDays: opts.HistoryDays,
		loc:         opts.Location,
		now:         time.Now,
	}
	if len(o.order) == 0 {
		o.order = source.AllTypes()
	}
	if o.engine == nil {
		o.engine = trend.NewEngine(trend.DefaultConfig())
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}
	if o.timeout <= 0 {
		o.timeout = defaultTimeout
	}
	if o.loc == nil {
		o.loc = time.UTC
	}
	return o
}

// Collection is the outcome of one adapter fan-out.
type Collection struct {
	// Batches holds one batch per adapter, in fan-in order.
	Batches []trend.Batch
	Errors  map[source.Type]error
}

// Counts returns the number of items each source returned.
func (c Collection) Counts() map[string]int {
	counts := make(map[string]int, len(c.Batches))
	for _, b := range c.Batches {
		counts[string(b.Source)] += len(b.Items)
	}
	return counts
}

// Collect runs every adapter concurrently, each under its own timeout. A
// failing adapter contributes an empty batch and its error is recorded.
func (o *Orchestrator) Collect(ctx context.Context) Collection {
	results := make([][]source.Item, len(o.sources))
	errs := make([]error, len(o.sources))

	var g errgroup.Group
	g.SetLimit(max(len(o.sources), 1))

	for i, src := range o.sources {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, o.timeout)
			defer cancel()

			start := time.Now()
			items, err := src.Collect(fetchCtx)
			if err != nil {
				o.logger.Warn("source failed", "source", src.Name(), "err", err, "elapsed", time.Since(start))
				errs[i] = err
				return nil
			}
			o.logger.Info("source collected", "source", src.Name(), "items", len(items), "elapsed", time.Since(start))
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	col := Collection{Errors: make(map[source.Type]error)}
	for i, src := range o.sources {
		if errs[i] != nil {
			col.Errors[src.Name()] = errs[i]
		}
	}

	placed := make([]bool, len(o.sources))
	for _, t := range o.order {
		for i, src := range o.sources {
			if src.Name() == t && !placed[i] {
				col.Batches = append(col.Batches, trend.Batch{Source: t, Items: results[i]})
				placed[i] = true
			}
		}
	}
	for i, src := range o.sources {
		if !placed[i] {
			col.Batches = append(col.Batches, trend.Batch{Source: src.Name(), Items: results[i]})
		}
	}
	return col
}

// Rank collects and ranks without persisting anything.
func (o *Orchestrator) Rank(ctx context.Context) ([]trend.Ranked, Collection) {
	col := o.Collect(ctx)
	return o.engine.Run(col.Batches...), col
}

// Result describes a finished run.
type Result struct {
	RunID        string            `json:"run_id"`
	Date         string            `json:"date"`
	Clusters     int               `json:"clusters"`
	Ranked       []trend.Ranked    `json:"ranked"`
	Decision     *decide.Decision  `json:"decision,omitempty"`
	SourceCounts map[string]int    `json:"source_counts"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
}

// Today returns the current date in the orchestrator's location.
func (o *Orchestrator) Today() string {
	return o.now().In(o.loc).Format(store.DateLayout)
}

// Run performs a full run for date (today if empty). The ranked candidates
// are persisted before the decider is called, so a decider failure still
// leaves the run on record.
func (o *Orchestrator) Run(ctx context.Context, date string) (*Result, error) {
	if o.store == nil {
		return nil, errors.New("pipeline run requires a store")
	}
	if !o.mu.TryLock() {
		return nil, ErrBusy
	}
	defer o.mu.Unlock()

	if date == "" {
		date = o.Today()
	}
	day, err := time.Parse(store.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse run date %q: %w", date, err)
	}

	run, err := o.store.CreateRun(ctx, date, o.engine.Config().Weights)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With("run", run.ID, "date", date)
	logger.Info("run started", "sources", len(o.sources))

	col := o.Collect(ctx)
	clusters := o.engine.Merge(col.Batches...)
	ranked := o.engine.Ranker().Rank(clusters)

	res := &Result{
		RunID:        run.ID,
		Date:         date,
		Clusters:     len(clusters),
		Ranked:       ranked,
		SourceCounts: col.Counts(),
		SourceErrors: make(map[string]string, len(col.Errors)),
	}
	for t, e := range col.Errors {
		res.SourceErrors[string(t)] = e.Error()
	}

	if err := o.store.SaveCandidates(ctx, run.ID, ranked); err != nil {
		return res, err
	}
	run.SourceCounts = res.SourceCounts
	run.SourceErrors = res.SourceErrors
	run.Clusters = res.Clusters
	if err := o.store.FinishRun(ctx, run); err != nil {
		return res, err
	}
	logger.Info("candidates ranked", "clusters", res.Clusters, "kept", len(ranked))

	if o.decider == nil {
		return res, nil
	}

	since := day.AddDate(0, 0, -o.historyDays).Format(store.DateLayout)
	recent, err := o.store.RecentTitles(ctx, since)
	if err != nil {
		return res, err
	}

	decision, err := o.decider.Decide(ctx, ranked, recent)
	if err != nil {
		return res, fmt.Errorf("decide topic: %w", err)
	}
	res.Decision = decision
	logger.Info("topic selected", "title", decision.Title, "candidate", decision.Candidate)

	topic := &store.Topic{
		Date:             date,
		RunID:            run.ID,
		Title:            decision.Title,
		Category:         decision.Category,
		Question:         decision.Question,
		Summary:          decision.Summary,
		ArgumentsFor:     decision.ArgumentsFor,
		ArgumentsAgainst: decision.ArgumentsAgainst,
		Candidate:        decision.Candidate,
	}
	if err := o.store.SaveTopic(ctx, topic); err != nil {
		return res, err
	}

	if o.alerts.HasNotifiers() {
		n := alert.NewNotification(date, decision, ranked)
		if err := o.alerts.Broadcast(ctx, n); err != nil {
			logger.Error("alert failed", "err", err)
		}
	}

	return res, nil
}
