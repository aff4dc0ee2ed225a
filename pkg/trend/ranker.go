package trend

import (
	"sort"

	"github.com/elonfeng/debateradar/pkg/source"
)

// Ranked is one entry of the list handed to the decision-maker.
type Ranked struct {
	Title               string                  `json:"title"`
	CompositeScore      float64                 `json:"composite_score"`
	ContributingSources []source.Type           `json:"contributing_sources"`
	PerSourceSignals    map[source.Type]float64 `json:"per_source_signals"`
	Members             []Member                `json:"members,omitempty"`
}

// Ranker orders clusters by a weighted composite score.
type Ranker struct {
	Weights Weights
	TopN    int
}

// Composite computes
// w1*discussion + w2*video + w3*trends + w4*min(|sources|/3, 1).
func (r Ranker) Composite(c *Cluster) float64 {
	w := r.Weights
	return w.Discussion*c.Signal(source.TypeDiscussion) +
		w.Video*c.Signal(source.TypeVideo) +
		w.Trends*c.Signal(source.TypeTrends) +
		w.CrossPlatform*c.Presence()
}

// Rank returns the top clusters, best first. Equal scores keep pool order.
// The clusters themselves are not modified.
func (r Ranker) Rank(pool []*Cluster) []Ranked {
	ranked := make([]Ranked, 0, len(pool))
	for _, c := range pool {
		signals := make(map[source.Type]float64, len(c.Signals))
		for t, v := range c.Signals {
			signals[t] = v
		}
		members := make([]Member, len(c.Members))
		copy(members, c.Members)

		ranked = append(ranked, Ranked{
			Title:               c.Title,
			CompositeScore:      r.Composite(c),
			ContributingSources: c.Sources(),
			PerSourceSignals:    signals,
			Members:             members,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore > ranked[j].CompositeScore
	})

	if r.TopN > 0 && len(ranked) > r.TopN {
		ranked = ranked[:r.TopN]
	}
	return ranked
}
