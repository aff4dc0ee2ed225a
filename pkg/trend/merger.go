package trend

import (
	"strings"

	"github.com/elonfeng/debateradar/pkg/source"
)

// Member is one scored candidate folded into a cluster.
type Member struct {
	Source source.Type `json:"source"`
	Title  string      `json:"title"`
	URL    string      `json:"url,omitempty"`
	Value  float64     `json:"value"`
}

// Cluster is the merged view of one topic across sources.
type Cluster struct {
	// Title is the title of the first candidate folded in.
	Title   string
	Key     string
	Signals map[source.Type]float64
	Members []Member
	sources []source.Type
}

func newCluster(title, key string) *Cluster {
	signals := make(map[source.Type]float64, len(source.AllTypes()))
	for _, t := range source.AllTypes() {
		signals[t] = 0
	}
	return &Cluster{Title: title, Key: key, Signals: signals}
}

// Signal returns the value a source contributed, 0 if it contributed none.
func (c *Cluster) Signal(t source.Type) float64 {
	return c.Signals[t]
}

// HasSource reports whether the source contributed to the cluster.
func (c *Cluster) HasSource(t source.Type) bool {
	for _, s := range c.sources {
		if s == t {
			return true
		}
	}
	return false
}

// Sources returns the contributing sources in canonical order.
func (c *Cluster) Sources() []source.Type {
	out := make([]source.Type, 0, len(c.sources))
	for _, t := range source.AllTypes() {
		if c.HasSource(t) {
			out = append(out, t)
		}
	}
	return out
}

// Presence is the cross-platform bonus, min(|sources| / 3, 1).
func (c *Cluster) Presence() float64 {
	return min(float64(len(c.sources))/3, 1)
}

func (c *Cluster) add(s Scored) {
	src := s.Item.Source
	c.Members = append(c.Members, Member{
		Source: src,
		Title:  s.Item.Title,
		URL:    s.Item.URL,
		Value:  s.Value,
	})
	// Unknown sources are kept as members but take no slot and no presence.
	if !isKnownType(src) {
		return
	}
	if c.HasSource(src) {
		// A source contributes once per cluster: its highest value.
		if s.Value > c.Signals[src] {
			c.Signals[src] = s.Value
		}
		return
	}
	c.sources = append(c.sources, src)
	c.Signals[src] = s.Value
}

// Merger folds scored candidates, one source at a time, into a shared pool.
// A Merger belongs to a single run and is not safe for concurrent use.
type Merger struct {
	matcher Matcher
	pool    []*Cluster
}

// NewMerger creates an empty pool that matches with m.
func NewMerger(m Matcher) *Merger {
	return &Merger{matcher: m}
}

// Fold adds every scored candidate of one batch, in order.
func (m *Merger) Fold(scored []Scored) {
	for _, s := range scored {
		m.Add(s)
	}
}

// Add folds a single candidate into its matching cluster or starts a new one.
// Every call lands in exactly one cluster.
func (m *Merger) Add(s Scored) *Cluster {
	key := Normalize(s.Item.Title)
	c := m.matcher.FindMatch(key, m.pool)
	if c == nil {
		c = newCluster(strings.TrimSpace(s.Item.Title), key)
		m.pool = append(m.pool, c)
	}
	c.add(s)
	return c
}

// Clusters returns the pool in creation order.
func (m *Merger) Clusters() []*Cluster {
	return m.pool
}

func isKnownType(t source.Type) bool {
	for _, k := range source.AllTypes() {
		if k == t {
			return true
		}
	}
	return false
}
