package trend

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize canonicalizes a title into a comparable key: lower-cased, with
// everything but letters, digits and whitespace removed, and runs of
// whitespace collapsed. Garbage input yields the empty key.
func Normalize(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the distinct words of a normalized key that are longer
// than cutoff characters, in first-seen order.
func Tokens(key string, cutoff int) []string {
	words := strings.Fields(key)
	seen := make(map[string]struct{}, len(words))
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) <= cutoff {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		tokens = append(tokens, w)
	}
	return tokens
}
