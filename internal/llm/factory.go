package llm

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"agentloop/internal/domain"
)

// SecretGetter returns a secret by name (e.g. "OPENAI_API_KEY").
type SecretGetter func(name string) (string, error)

// EnvSecrets reads secrets from the process environment.
func EnvSecrets(name string) (string, error) {
	return os.Getenv(name), nil
}

// secretNames maps keyed providers to the environment variable holding their key.
var secretNames = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

// Providers lists the accepted values of ModelConfig.Provider.
var Providers = []string{"local", "openai", "anthropic", "openrouter", "ollama", "gemini"}

// KnownProvider reports whether provider names a supported backend. Empty means local.
func KnownProvider(provider string) bool {
	p := strings.ToLower(strings.TrimSpace(provider))
	return p == "" || slices.Contains(Providers, p)
}

// SecretName returns the environment variable holding provider's API key.
// ok is false for providers that need no key.
func SecretName(provider string) (name string, ok bool) {
	name, ok = secretNames[strings.ToLower(strings.TrimSpace(provider))]
	return name, ok
}

// NewChatModel returns the ChatModel selected by cfg.Provider. Empty provider
// defaults to "local". getSecret resolves API keys for keyed providers; nil
// uses EnvSecrets.
func NewChatModel(ctx context.Context, cfg domain.ModelConfig, getSecret SecretGetter) (domain.ChatModel, error) {
	if getSecret == nil {
		getSecret = EnvSecrets
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "local"
	}
	switch provider {
	case "local":
		return NewLocalModel("Local: "), nil
	case "ollama":
		return NewOllamaModel(cfg), nil
	case "openai", "openrouter", "anthropic", "gemini":
		key, err := resolveKey(provider, getSecret)
		if err != nil {
			return nil, err
		}
		switch provider {
		case "openai":
			return NewOpenAIModel(key, cfg), nil
		case "openrouter":
			return NewOpenRouterModel(key, cfg), nil
		case "anthropic":
			return NewAnthropicModel(key, cfg), nil
		default:
			return NewGeminiModel(ctx, key, cfg)
		}
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (use: %s)", cfg.Provider, strings.Join(Providers, ", "))
	}
}

// resolveKey fetches and trims the API key for provider.
func resolveKey(provider string, getSecret SecretGetter) (string, error) {
	name := secretNames[provider]
	key, err := getSecret(name)
	if err != nil {
		return "", fmt.Errorf("%s provider: reading %s: %w", provider, name, err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%s provider: API key not set (export %s or add it to .env)", provider, name)
	}
	return key, nil
}
