package context

import (
	"fmt"

	"agentloop/internal/domain"
)

// Manager trims the history sent to the model to a token budget. It keeps the
// newest messages and cuts only at user messages, so a tool request is never
// separated from its results. The system prompt is charged against the
// budget but is not part of the trimmed slice.
type Manager struct {
	tokenizer domain.Tokenizer
	maxTokens int
}

// NewManager panics if tokenizer is nil or maxTokens <= 0.
func NewManager(tokenizer domain.Tokenizer, maxTokens int) *Manager {
	if tokenizer == nil {
		panic("context: tokenizer must not be nil")
	}
	if maxTokens <= 0 {
		panic("context: maxTokens must be > 0")
	}
	return &Manager{tokenizer: tokenizer, maxTokens: maxTokens}
}

// FitToWindow returns the longest suffix of messages that starts on a user
// message and fits in maxTokens minus the system prompt. If even the newest
// user turn does not fit, it is returned anyway: the model must see the
// question it is answering.
func (m *Manager) FitToWindow(messages []domain.Message, systemPrompt string) ([]domain.Message, error) {
	if len(messages) == 0 {
		return []domain.Message{}, nil
	}

	budget := m.maxTokens
	if systemPrompt != "" {
		n, err := m.tokenizer.CountTokens(systemPrompt)
		if err != nil {
			return nil, fmt.Errorf("context: counting system prompt tokens: %w", err)
		}
		if n > m.maxTokens {
			return nil, fmt.Errorf("context: system prompt (%d tokens) exceeds limit (%d tokens)", n, m.maxTokens)
		}
		budget -= n
	}

	cut, newestUser := -1, -1 // cut: oldest user message whose suffix fits
	used := 0
	for i := len(messages) - 1; i >= 0; i-- {
		n, err := m.tokenizer.CountTokens(MessageText(messages[i]))
		if err != nil {
			return nil, fmt.Errorf("context: counting tokens for message %d: %w", i, err)
		}
		used += n
		if messages[i].Role != domain.RoleUser {
			continue
		}
		if newestUser < 0 {
			newestUser = i
		}
		if used > budget {
			break
		}
		cut = i
	}
	if cut < 0 {
		return messages[max(newestUser, 0):], nil
	}
	return messages[cut:], nil
}

var _ domain.ContextManager = (*Manager)(nil)
