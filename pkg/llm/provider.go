package llm

import (
	"context"
)

// Provider defines the interface for interacting with LLM services. An
// intent name ("fact_extract", "narration", ...) is resolved by each
// provider to a model via its configured profiles.
type Provider interface {
	// GenerateText sends a prompt and returns the text response.
	GenerateText(ctx context.Context, name, prompt string) (string, error)

	// GenerateJSON sends a prompt and unmarshals the response into the target struct.
	GenerateJSON(ctx context.Context, name, prompt string, target any) error

	// GenerateImageText sends a prompt plus an image and returns the text response.
	GenerateImageText(ctx context.Context, name, prompt, imagePath string) (string, error)

	// HasProfile reports whether the provider has a model configured for name.
	HasProfile(name string) bool

	// ValidateModels checks that every configured profile resolves to a
	// model the provider account actually has access to.
	ValidateModels(ctx context.Context) error
}
