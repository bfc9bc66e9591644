package deepseek

import (
	"wayfarer/pkg/config"
	"wayfarer/pkg/llm/openai"
	"wayfarer/pkg/request"
)

const (
	deepseekBaseURL = "https://api.deepseek.com/chat/completions"
)

// NewClient creates a new DeepSeek client using the generic OpenAI provider.
func NewClient(cfg config.ProviderConfig, rc *request.Client) (*openai.Client, error) {
	return openai.NewClient(cfg, deepseekBaseURL, rc)
}
