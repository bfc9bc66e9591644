package facts

import (
	"regexp"
	"strings"

	"wayfarer/pkg/model"
)

const maxMergedFacts = 22

var (
	datePattern        = regexp.MustCompile(`\b\d{1,2}(st|nd|rd|th)?\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4}\b|\b\d{4}-\d{2}-\d{2}\b`)
	namedEventPattern  = regexp.MustCompile(`\b(War|Battle|Siege|Revolt|Uprising|Treaty|Conference)\s+of\s+[A-Z][\w'-]*`)
	namedPersonPattern = regexp.MustCompile(`\b(named after|built by|designed by|founded by)\s+[A-Z][\w'-]*(\s+[A-Z][\w'-]*)?`)
)

// Merge combines graph and encyclopedia facts (C6a ⊕ C6b), deduplicates
// case-folded, and caps the result at 22 — preserving graph-facts-first
// order since they tend to be the most structurally reliable.
func Merge(graphFacts, encyclopediaFacts []model.Fact) []model.AnchoredFact {
	seen := make(map[string]struct{}, len(graphFacts)+len(encyclopediaFacts))
	merged := make([]model.AnchoredFact, 0, len(graphFacts)+len(encyclopediaFacts))

	add := func(f model.Fact) {
		key := strings.ToLower(strings.TrimSpace(f.Text))
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		merged = append(merged, anchor(f))
	}

	for _, f := range graphFacts {
		add(f)
	}
	for _, f := range encyclopediaFacts {
		add(f)
	}

	if len(merged) > maxMergedFacts {
		merged = merged[:maxMergedFacts]
	}
	return merged
}

// anchor decorates a Fact with the concrete-anchor flags used by the
// scorer (C7) and the grounding validator (P1/P2): a fact is anchored
// when it carries a concrete time, date, named event, or named person.
func anchor(f model.Fact) model.AnchoredFact {
	return model.AnchoredFact{
		Fact:           f,
		HasYear:        hasYear(f.Text),
		HasDate:        datePattern.MatchString(f.Text),
		HasNamedEvent:  namedEventPattern.MatchString(f.Text),
		HasNamedPerson: namedPersonPattern.MatchString(f.Text),
	}
}
