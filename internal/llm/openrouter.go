package llm

import "agentloop/internal/domain"

const (
	openRouterBaseURL      = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel = "openai/gpt-4o-mini"
)

// NewOpenRouterModel returns a ChatModel backed by OpenRouter's
// OpenAI-compatible API.
func NewOpenRouterModel(apiKey string, cfg domain.ModelConfig) *OpenAIModel {
	return newOpenAICompatible("openrouter", apiKey, openRouterBaseURL, defaultOpenRouterModel, cfg)
}
