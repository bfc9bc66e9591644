package nvidia

import (
	"wayfarer/pkg/config"
	"wayfarer/pkg/llm/openai"
	"wayfarer/pkg/request"
)

const baseURL = "https://integrate.api.nvidia.com/v1"

// NewClient creates a new Nvidia client using the generic OpenAI provider.
func NewClient(cfg config.ProviderConfig, rc *request.Client) (*openai.Client, error) {
	return openai.NewClient(cfg, baseURL, rc)
}
