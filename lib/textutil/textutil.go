package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases `name` and drops all whitespace, so
// "Glycoside Hydrolase" and "glycosidehydrolase" compare equal.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// Match returns the candidate equal to `name` after normalization.
func Match(name string, candidates []string) (string, bool) {
	normalized := NormalizeName(name)
	for _, c := range candidates {
		if NormalizeName(c) == normalized {
			return c, true
		}
	}
	return "", false
}

// minSuggestSimilarity is the jaro-winkler similarity below which Suggest
// gives up.
const minSuggestSimilarity = 0.7

// Suggest returns the candidate most similar to `name`, or "" when none
// comes close.
func Suggest(name string, candidates []string) string {
	normalized := NormalizeName(name)

	best := ""
	bestSimilarity := 0.0
	for _, c := range candidates {
		similarity := matchr.JaroWinkler(normalized, NormalizeName(c), false)
		if similarity > bestSimilarity {
			best = c
			bestSimilarity = similarity
		}
	}
	if bestSimilarity < minSuggestSimilarity {
		return ""
	}
	return best
}
