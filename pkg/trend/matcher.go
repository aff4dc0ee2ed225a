package trend

// Matcher finds the existing cluster a new title belongs to by word overlap.
//
// Matching is approximate on purpose: short or generic titles can over-merge
// or fail to merge. The decision-maker sees the final titles and tolerates
// minor duplication.
type Matcher struct {
	Threshold float64
	Cutoff    int
}

// Overlap is |shared| / max(|a|, |b|, 1) over two token sets.
func Overlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	shared := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(a), len(b), 1))
}

// FindMatch returns the cluster with the highest overlap strictly above the
// threshold, or nil. Ties go to the earliest cluster in the pool. Keys with
// no qualifying tokens never match, so degenerate titles each get their own
// cluster.
//
// This is a linear scan per call, O(n²) per run; fine for tens of candidates.
func (m Matcher) FindMatch(key string, pool []*Cluster) *Cluster {
	tokens := Tokens(key, m.Cutoff)
	if len(tokens) == 0 {
		return nil
	}

	var (
		best     *Cluster
		bestOver float64
	)
	for _, c := range pool {
		over := Overlap(tokens, Tokens(c.Key, m.Cutoff))
		if over > m.Threshold && (best == nil || over > bestOver) {
			best = c
			bestOver = over
		}
	}
	return best
}
