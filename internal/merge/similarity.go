package merge

import (
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Threshold is the minimum similarity ratio for two titles to match.
const Threshold = 0.8

var (
	nonWord    = regexp.MustCompile(`[^\pL\pN_\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// NormalizeTitle lowercases a title, replaces punctuation with spaces and
// collapses whitespace.
func NormalizeTitle(s string) string {
	s = strings.ToLower(s)
	s = nonWord.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Similarity is the Ratcliff/Obershelp ratio of the normalized titles,
// computed over runes.
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(runes(NormalizeTitle(a)), runes(NormalizeTitle(b))).Ratio()
}

// TitlesMatch reports whether two titles are similar enough to describe the
// same event. Titles that normalize to nothing never match.
func TitlesMatch(a, b string) bool {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == "" || nb == "" {
		return false
	}
	return difflib.NewMatcher(runes(na), runes(nb)).Ratio() >= Threshold
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
