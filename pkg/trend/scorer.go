package trend

import (
	"math"

	"github.com/elonfeng/debateradar/pkg/source"
)

// Scored is a raw candidate with its per-source value in [0,1].
type Scored struct {
	Item  source.Item
	Value float64
}

// DiscussionScore rates a discussion post by how evenly it split its voters.
//
// A ratio of exactly 0.5 is maximal disagreement. Comment volume is log
// saturated at 10k comments so viral threads do not dominate, and raw score
// only discounts posts with fewer than 100 net points.
func DiscussionScore(approvalRatio float64, comments, score int) float64 {
	ratio := clamp01(finite(approvalRatio))
	ratioDivisiveness := 1 - math.Abs(ratio-0.5)*2

	engagement := math.Min(math.Log10(float64(max(comments, 0))+1)/4, 1)

	scoreWeight := 1.0
	if score <= 100 {
		scoreWeight = clamp01(float64(score) / 100)
	}

	return clamp01(0.6*ratioDivisiveness + 0.3*engagement + 0.1*scoreWeight)
}

// TrendsScore maps a relative search volume on the 0-100 scale into [0,1].
// The trends feed carries no disagreement signal, only breadth.
func TrendsScore(volume float64) float64 {
	return clamp01(finite(volume) / 100)
}

// VideoScore uses comments per view as a stand-in for contention, since the
// platform hides negative reactions. One comment per thousand views saturates.
func VideoScore(comments int, views int64) float64 {
	if views <= 0 || comments <= 0 {
		return 0
	}
	density := float64(comments) / float64(views)
	return clamp01(density * 1000)
}

// ScoreItem applies the heuristic that matches the given source type.
// Unknown sources score 0.
func ScoreItem(src source.Type, item source.Item) float64 {
	switch src {
	case source.TypeDiscussion:
		return DiscussionScore(item.UpvoteRatio, item.Comments, item.Score)
	case source.TypeTrends:
		return TrendsScore(item.Volume)
	case source.TypeVideo:
		return VideoScore(item.Comments, item.Views)
	}
	return 0
}

// ScoreBatch scores every item of one source, stamping the source type on each.
// Items whose titles repeat within the batch collapse to the highest-scored one.
func ScoreBatch(src source.Type, items []source.Item) []Scored {
	items = source.Dedupe(items, func(it source.Item) float64 { return ScoreItem(src, it) })
	scored := make([]Scored, 0, len(items))
	for _, item := range items {
		item.Source = src
		scored = append(scored, Scored{Item: item, Value: ScoreItem(src, item)})
	}
	return scored
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
