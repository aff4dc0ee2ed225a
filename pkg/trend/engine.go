// Package trend reconciles trending candidates from several platforms into a
// single ranked list of debate topics.
//
// A run normalizes titles, scores each candidate with its platform heuristic,
// folds candidates into fuzzy-matched clusters and ranks the clusters by a
// configurable weighted composite. It performs no I/O and never fails.
package trend

import "github.com/elonfeng/debateradar/pkg/source"

// Batch is the output of one source adapter for one run.
type Batch struct {
	Source source.Type
	Items  []source.Item
}

// Engine runs the ranking pipeline. It keeps no state between runs, so one
// Engine can serve concurrent runs.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine. Zero or out-of-range fields fall back to
// their DefaultConfig value; weights fall back together if any one of them
// is negative or not finite, or if none is positive.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Merge scores and folds batches in the order given. Order does not change
// composite scores, but the first source to describe a topic supplies its
// canonical title, so callers must keep fan-in order fixed to get
// reproducible titles.
func (e *Engine) Merge(batches ...Batch) []*Cluster {
	m := NewMerger(Matcher{Threshold: e.cfg.MatchThreshold, Cutoff: e.cfg.TokenCutoff})
	for _, b := range batches {
		m.Fold(ScoreBatch(b.Source, b.Items))
	}
	return m.Clusters()
}

// Run merges the batches and returns the ranked top-N. Empty input yields
// an empty, non-nil slice.
func (e *Engine) Run(batches ...Batch) []Ranked {
	return e.Ranker().Rank(e.Merge(batches...))
}

// Ranker returns a ranker built from the engine's weights and top-N.
func (e *Engine) Ranker() Ranker {
	return Ranker{Weights: e.cfg.Weights, TopN: e.cfg.TopN}
}
