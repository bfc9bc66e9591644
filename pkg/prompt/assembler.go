package prompt

import (
	"fmt"
	"strings"

	"wayfarer/pkg/geo"
)

const maxFactsInBlock = 18

var distancePhrases = map[string]string{
	"en": "about %.0f meters away",
	"he": "כ-%.0f מטרים משם",
	"fr": "à environ %.0f mètres",
}

// BuildFactsBlock renders the header lines (place name, approximate
// distance) followed by numbered FACT lines, capped at 18 (spec.md §4.8).
func BuildFactsBlock(req Request) string {
	var b strings.Builder
	b.WriteString(req.PlaceName)
	b.WriteString("\n")
	b.WriteString(distancePhrase(req.Lang, req.DistanceMeters))
	b.WriteString("\n\n")

	facts := req.Facts
	if len(facts) > maxFactsInBlock {
		facts = facts[:maxFactsInBlock]
	}
	for i, f := range facts {
		fmt.Fprintf(&b, "FACT %d: %s\n", i+1, f.Text)
	}
	return b.String()
}

func distancePhrase(lang string, meters float64) string {
	rounded := geo.RoundDistance(meters, 50)
	tmpl, ok := distancePhrases[lang]
	if !ok {
		tmpl = distancePhrases["en"]
	}
	return fmt.Sprintf(tmpl, rounded)
}

// BuildSystemPrompt renders the language-parametrized system contract of
// spec.md §4.8: FACTS-only grounding, no filler, single paragraph, safe
// for teens, every sentence concrete.
func BuildSystemPrompt(lang string) string {
	return fmt.Sprintf(`You are a tour guide narrating a single point of interest in %s.
Use only the information in the FACTS block below; never invent details or draw on outside knowledge.
Do not use filler phrases, superlatives, generic driving advice, or cliché closing lines.
Keep the tone safe for teenagers: if conflict appears, mention it briefly and without graphic detail.
Write a single paragraph: no headings, no lists, no line breaks.
Every sentence must contain at least one concrete fact: a year, date, number, name, event, place, or body mentioned in FACTS.
If the FACTS block does not contain enough material to ground a story, respond with exactly: %s`, lang, NoStoryMarker)
}

// BuildUserPrompt renders the FACTS block plus the narration-structure
// instructions of spec.md §4.8.
func BuildUserPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(BuildFactsBlock(req))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Write the narration now, between %d and %d words.\n", req.Bounds.MinWords, req.Bounds.MaxWords)
	b.WriteString("Sentences 1-2 anchor the place name and its distance, entering directly into the subject.\n")
	b.WriteString("Sentences 3 through 8 or 9 each introduce one distinct fact from FACTS, preferring anchored facts (year, date, named event, named person).\n")
	b.WriteString("The closing sentence must reference a concrete fact from FACTS.\n")
	fmt.Fprintf(&b, "If the facts are insufficient, respond with exactly: %s\n", NoStoryMarker)
	return b.String()
}

// BuildRepairPrompt quotes the same FACTS block, the validator's failure
// reason, and the rejected draft, instructing a compliant rewrite without
// new facts (spec.md §4.9).
func BuildRepairPrompt(req Request, reason ValidationReason, draft string) string {
	var b strings.Builder
	b.WriteString(BuildFactsBlock(req))
	fmt.Fprintf(&b, "\nThe previous draft failed validation (%s):\n\n%s\n\n", reason, draft)
	b.WriteString("Rewrite it to comply, using only facts already present in FACTS and introducing no new information.\n")
	fmt.Fprintf(&b, "If the facts are insufficient, respond with exactly: %s\n", NoStoryMarker)
	return b.String()
}

// Validate implements the four validator rules of spec.md §4.8 in the
// order given there; the first failing rule is returned.
func Validate(story string, bounds Bounds, bannedFiller []string) ValidationResult {
	if story == NoStoryMarker {
		return ValidationResult{OK: false, Reason: ReasonModelNoStory}
	}

	words := strings.Fields(story)
	if len(words) < bounds.MinWords || len(words) > bounds.MaxWords {
		return ValidationResult{OK: false, Reason: ReasonBadLength}
	}

	if containsBannedFiller(story, bannedFiller) {
		return ValidationResult{OK: false, Reason: ReasonBannedFiller}
	}

	if strings.Contains(story, "\n\n") {
		return ValidationResult{OK: false, Reason: ReasonNotOneParagraph}
	}

	return ValidationResult{OK: true}
}

func containsBannedFiller(story string, bannedFiller []string) bool {
	lower := strings.ToLower(story)
	for _, phrase := range bannedFiller {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
