package source

import "strings"

// DefaultExcludeKeywords drops topics that rarely make a usable debate.
var DefaultExcludeKeywords = []string{
	"nsfw", "giveaway", "megathread", "daily discussion",
	"live stream", "livestream", "official trailer",
	"lyrics", "box score", "highlights", "unboxing",
}

// Filter holds keyword lists used to discard unusable candidates.
type Filter struct {
	exclude []string
}

// NewFilter creates a filter with the default exclusions plus extras.
func NewFilter(extraExclude []string) *Filter {
	exclude := make([]string, 0, len(DefaultExcludeKeywords)+len(extraExclude))
	exclude = append(exclude, DefaultExcludeKeywords...)
	exclude = append(exclude, extraExclude...)

	for i, kw := range exclude {
		exclude[i] = strings.ToLower(strings.TrimSpace(kw))
	}

	return &Filter{exclude: exclude}
}

// Allows reports whether text contains none of the excluded keywords.
func (f *Filter) Allows(text string) bool {
	if f == nil {
		return true
	}
	lower := strings.ToLower(text)
	for _, ex := range f.exclude {
		if ex != "" && strings.Contains(lower, ex) {
			return false
		}
	}
	return true
}

// Apply returns the items whose titles pass the filter, preserving order.
func (f *Filter) Apply(items []Item) []Item {
	if f == nil {
		return items
	}
	kept := items[:0:0]
	for _, item := range items {
		if f.Allows(item.Title) {
			kept = append(kept, item)
		}
	}
	return kept
}

// Dedupe collapses items whose titles are equal ignoring case and spacing.
// The highest-scored item of each group keeps the position of the first one seen.
func Dedupe(items []Item, score func(Item) float64) []Item {
	index := make(map[string]int, len(items))
	var out []Item
	for _, item := range items {
		key := strings.ToLower(strings.Join(strings.Fields(item.Title), " "))
		if i, ok := index[key]; ok {
			if score(item) > score(out[i]) {
				out[i] = item
			}
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	return out
}
