package tts

import (
	"regexp"
	"strings"
)

var speakerLabelRe = regexp.MustCompile(`(?m)^\s*[A-Za-z ]{2,20}:\s*`)

// StripSpeakerLabels removes leading "Narrator:" / "Speaker:"-style labels
// a generator sometimes prepends despite the single-paragraph contract.
func StripSpeakerLabels(text string) string {
	return strings.TrimSpace(speakerLabelRe.ReplaceAllString(text, ""))
}
