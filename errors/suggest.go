package errors

import (
	"cmp"
	"slices"
	"strings"

	"github.com/agext/levenshtein"
)

// MaxSuggestionDistance bounds the edit distance of a suggestion for long
// names. Shorter names get a tighter bound, see threshold.
const MaxSuggestionDistance = 3

// MaxSuggestions is the number of suggestions attached to a diagnostic.
const MaxSuggestions = 3

// Suggestion is a declared name close to an unresolved one.
type Suggestion struct {
	Value    string
	Distance int
}

func threshold(name string) int {
	switch n := len([]rune(name)); {
	case n <= 3:
		return 1
	case n <= 5:
		return 2
	default:
		return MaxSuggestionDistance
	}
}

// SuggestSimilar ranks the candidates close to name, nearest first. Distance
// ignores case, so a component written as "card" suggests "Card" with
// distance 0. The name itself is never suggested.
func SuggestSimilar(name string, candidates []string) []Suggestion {
	if name == "" {
		return nil
	}
	limit := threshold(name)
	folded := strings.ToLower(name)
	seen := make(map[string]bool, len(candidates))
	var out []Suggestion
	for _, c := range candidates {
		if c == "" || c == name || seen[c] {
			continue
		}
		seen[c] = true
		if d := levenshtein.Distance(folded, strings.ToLower(c), nil); d <= limit {
			out = append(out, Suggestion{Value: c, Distance: d})
		}
	}
	slices.SortFunc(out, func(a, b Suggestion) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), strings.Compare(a.Value, b.Value))
	})
	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}

// FormatSuggestions renders suggestions as a hint line, or "" when there
// are none.
func FormatSuggestions(suggestions []Suggestion) string {
	switch len(suggestions) {
	case 0:
		return ""
	case 1:
		return "Did you mean '" + suggestions[0].Value + "'?"
	}
	quoted := make([]string, len(suggestions))
	for i, s := range suggestions {
		quoted[i] = "'" + s.Value + "'"
	}
	return "Did you mean one of: " + strings.Join(quoted, ", ") + "?"
}
