// Package filter builds effective search text and applies the post-extraction
// filters: negative keywords, exact match, and part-number verification.
package filter

import (
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/tracemotorsports/parthawk/internal/monitor"
)

// MaxResults caps the candidate list handed to deduplication.
const MaxResults = 100

// EffectiveKeywords returns the search string sent to extractors: the vehicle
// qualifier, when present, prefixed to the keyword string.
func EffectiveKeywords(q monitor.Query) string {
	if q.VehicleQualifier == "" {
		return q.Keywords
	}
	return q.VehicleQualifier + " " + q.Keywords
}

// IsPartNumber reports whether the keyword string looks like a part number
// rather than a free-text search. A part number is a single token with at
// least one digit, at least 5 characters once separators are stripped, and
// nothing beyond letters, digits, and separators. Multi-word searches
// ("2010 Infiniti EX35 headlight") never qualify.
func IsPartNumber(keywords string) bool {
	if strings.ContainsAny(keywords, " \t") {
		return false
	}
	stripped := normalizeToken(keywords)
	if len(stripped) < 5 {
		return false
	}
	hasDigit := false
	for _, r := range stripped {
		if unicode.IsDigit(r) {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return false
	}
	for _, r := range keywords {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !isSeparator(r) {
			return false
		}
	}
	return true
}

// containsNormalized reports whether needle appears in haystack once both are
// lowercased and stripped of everything but letters and digits. Marketplace
// titles write the same part number with wildly inconsistent punctuation.
func containsNormalized(haystack, needle string) bool {
	return strings.Contains(normalizeToken(haystack), normalizeToken(needle))
}

func normalizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSeparator(r rune) bool {
	switch r {
	case '-', '_', '.', '/':
		return true
	}
	return false
}

// Filter applies the post-extraction passes in a fixed order.
type Filter struct {
	logger *zap.Logger
}

// New creates a Filter.
func New(logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{logger: logger}
}

// Apply runs negative-keyword exclusion, optional exact-match retention, and
// part-number verification when the query looks like a part number, then caps
// the result. It always runs the negative-keyword pass even when an extractor
// already filtered, so extractor drift cannot reintroduce excluded listings.
// Runs before deduplication.
func (f *Filter) Apply(q monitor.Query, candidates []monitor.Candidate) []monitor.Candidate {
	out := excludeNegative(candidates, q.NegativeKeywords)

	if q.ExactMatch && q.Keywords != "" {
		before := len(out)
		out = retainContaining(out, q.Keywords)
		f.logger.Debug("exact match filter applied",
			zap.Int("before", before),
			zap.Int("after", len(out)),
		)
	}

	if IsPartNumber(q.Keywords) {
		before := len(out)
		out = retainContaining(out, q.Keywords)
		f.logger.Debug("part number filter applied",
			zap.String("part_number", q.Keywords),
			zap.Int("before", before),
			zap.Int("after", len(out)),
		)
	}

	if len(out) > MaxResults {
		out = out[:MaxResults]
	}
	return out
}

// ExcludesTitle reports whether title trips any negative keyword. Exported so
// extractors can pre-filter locally; Apply repeats the pass regardless.
func ExcludesTitle(title string, negatives []string) bool {
	lower := strings.ToLower(title)
	for _, nk := range negatives {
		nk = strings.TrimSpace(nk)
		if nk == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(nk)) {
			return true
		}
	}
	return false
}

func excludeNegative(in []monitor.Candidate, negatives []string) []monitor.Candidate {
	if len(negatives) == 0 {
		return in
	}
	out := in[:0:0]
	for _, c := range in {
		if ExcludesTitle(c.Title, negatives) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func retainContaining(in []monitor.Candidate, keywords string) []monitor.Candidate {
	out := in[:0:0]
	for _, c := range in {
		if containsNormalized(c.Title, keywords) {
			out = append(out, c)
		}
	}
	return out
}
