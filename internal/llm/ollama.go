package llm

import "agentloop/internal/domain"

const (
	ollamaBaseURL      = "http://localhost:11434/v1"
	defaultOllamaModel = "mistral"
)

// NewOllamaModel returns a ChatModel backed by a local Ollama server through
// its OpenAI-compatible endpoint. No API key is required.
func NewOllamaModel(cfg domain.ModelConfig) *OpenAIModel {
	return newOpenAICompatible("ollama", "ollama", ollamaBaseURL, defaultOllamaModel, cfg)
}
