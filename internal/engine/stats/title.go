package stats

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	yearPattern        = regexp.MustCompile(`\s*\(\d{4}\)`)
	punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

// NormalizeTitle lowercases a title, strips a "(YYYY)" suffix, diacritics and punctuation,
// and collapses whitespace.
func NormalizeTitle(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, title)
	if err == nil {
		title = stripped
	}

	title = strings.ToLower(title)
	title = yearPattern.ReplaceAllString(title, "")
	title = punctuationPattern.ReplaceAllString(title, " ")
	return strings.Join(strings.Fields(title), " ")
}

// TitlesMatch reports whether two titles are equal after normalization,
// or one contains the other.
func TitlesMatch(a, b string) bool {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

// Similarity is the Jaro-Winkler similarity of the normalized titles.
func Similarity(a, b string) float64 {
	return float64(edlib.JaroWinklerSimilarity(NormalizeTitle(a), NormalizeTitle(b)))
}

// BestMatch returns the index of the candidate that matches title best, or -1.
// Only candidates accepted by TitlesMatch are considered.
// Ties keep the earlier candidate, so sources should pass their rows newest first.
func BestMatch(title string, candidates []string) int {
	best, bestScore := -1, -1.0
	for i, candidate := range candidates {
		if !TitlesMatch(title, candidate) {
			continue
		}
		if score := Similarity(title, candidate); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
