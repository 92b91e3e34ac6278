package utils

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTitle lowercases a title, folds diacritics and drops everything
// that is not a letter or digit
func NormalizeTitle(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FuzzyMatchTitle matches a candidate title against known titles in two
// stages: exact normalized equality first, then containment in either
// direction. Within a stage the first known title in list order wins, so
// callers control tie-breaking through ordering. Returns the index of the
// match.
func FuzzyMatchTitle(candidate string, known []string) (int, bool) {
	c := NormalizeTitle(candidate)
	if c == "" {
		return -1, false
	}

	normalized := make([]string, len(known))
	for i, k := range known {
		normalized[i] = NormalizeTitle(k)
	}

	for i, k := range normalized {
		if k != "" && k == c {
			return i, true
		}
	}
	for i, k := range normalized {
		if k != "" && (strings.Contains(k, c) || strings.Contains(c, k)) {
			return i, true
		}
	}
	return -1, false
}

// ClosestTitle returns the known title with the smallest edit distance to
// the candidate. It is only used to make "no match" logs actionable.
func ClosestTitle(candidate string, known []string) (string, int) {
	c := NormalizeTitle(candidate)
	best, bestDist := "", -1
	for _, k := range known {
		d := levenshtein.ComputeDistance(c, NormalizeTitle(k))
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	return best, bestDist
}
