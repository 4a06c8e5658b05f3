// Package textprep shapes text for embedding and grouping: whitespace
// normalization for cache and similarity keys, and size-bounded
// truncation for provider input limits.
package textprep

import (
	"strings"
	"unicode"
)

const (
	// DefaultMaxInput bounds embedding input when a provider does not
	// configure its own limit.
	DefaultMaxInput = 8000

	// DefaultMergePrefix is the normalized-prefix length used as the
	// coarse similarity key when grouping memories for merging.
	DefaultMergePrefix = 30
)

// Normalize lowercases text and collapses all runs of whitespace to
// single spaces. Two texts that normalize equal are treated as the
// same input by the embedding cache.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Truncate bounds text to max bytes, cutting on a word boundary where
// one exists in the final quarter of the budget.
func Truncate(text string, max int) string {
	if max <= 0 {
		max = DefaultMaxInput
	}
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > max*3/4 {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(cut, unicode.IsSpace)
}

// MergeKey derives the coarse similarity key for consolidation
// grouping: the normalized text stripped of punctuation, truncated to
// prefixLen bytes. Lexically near-identical openings collide; this is
// deliberately crude (see the consolidation engine's merge rule).
func MergeKey(text string, prefixLen int) string {
	if prefixLen <= 0 {
		prefixLen = DefaultMergePrefix
	}
	var b strings.Builder
	for _, r := range Normalize(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		}
		if b.Len() >= prefixLen {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
