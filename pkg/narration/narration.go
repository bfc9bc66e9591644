// Package narration drives the C8 prompt through the generator and the
// one-shot repair loop of spec.md §4.9.
package narration

import (
	"context"
	"fmt"

	"wayfarer/pkg/prompt"
)

// Generator is the text-generation collaborator; narrationProfile names
// the LLM profile/model configured for story generation.
type Generator interface {
	GenerateText(ctx context.Context, profile, prompt string) (string, error)
}

const narrationProfile = "narration"

// Result is the narration loop's outcome: either a validated story, or a
// terminal reason why none was produced.
type Result struct {
	ShouldSpeak bool
	StoryText   string
	Reason      string
}

// Narrate generates a story from req, validates it, and — on any failure
// other than NO_STORY — issues one repair attempt quoting the failure
// reason and the rejected draft. A failure at the repair stage yields
// shouldSpeak=false with reason final_validation_failed_<subreason>
// (spec.md §4.9): silence is preferred over a low-quality story.
func Narrate(ctx context.Context, gen Generator, req prompt.Request, bannedFiller []string) (Result, error) {
	system := prompt.BuildSystemPrompt(req.Lang)

	draft, err := gen.GenerateText(ctx, narrationProfile, system+"\n\n"+prompt.BuildUserPrompt(req))
	if err != nil {
		return Result{}, err
	}

	result := prompt.Validate(draft, req.Bounds, bannedFiller)
	if result.OK {
		return Result{ShouldSpeak: true, StoryText: draft}, nil
	}
	if result.Reason == prompt.ReasonModelNoStory {
		return Result{ShouldSpeak: false, Reason: "model_no_story"}, nil
	}

	repaired, err := gen.GenerateText(ctx, narrationProfile, system+"\n\n"+prompt.BuildRepairPrompt(req, result.Reason, draft))
	if err != nil {
		return Result{}, err
	}

	final := prompt.Validate(repaired, req.Bounds, bannedFiller)
	if final.OK {
		return Result{ShouldSpeak: true, StoryText: repaired}, nil
	}
	if final.Reason == prompt.ReasonModelNoStory {
		return Result{ShouldSpeak: false, Reason: "model_no_story"}, nil
	}

	return Result{ShouldSpeak: false, Reason: fmt.Sprintf("final_validation_failed_%s", final.Reason)}, nil
}
