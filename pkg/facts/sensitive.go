package facts

import (
	"strings"

	"wayfarer/pkg/model"
)

// FilterSensitive drops facts matching a language-keyed deny-list of
// conflict/political/graphic-violence patterns (spec.md §4.6c).
// Filtering is line-level; the rest of the fact set is retained.
func FilterSensitive(facts []model.Fact, lang string, sensitiveByLang map[string][]string) []model.Fact {
	patterns := sensitiveByLang[lang]
	if len(patterns) == 0 {
		return facts
	}

	out := make([]model.Fact, 0, len(facts))
	for _, f := range facts {
		if !matchesAny(f.Text, patterns) {
			out = append(out, f)
		}
	}
	return out
}

func matchesAny(text string, patterns []string) bool {
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
