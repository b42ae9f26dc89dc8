package llm

import (
	"context"
	"fmt"

	"agentloop/internal/domain"
)

// LocalModel is a model-agnostic stub that echoes the latest user message
// for manual testing without API keys. It never requests tools.
type LocalModel struct {
	Prefix string // prepended to the echoed text
}

// NewLocalModel returns a local model that echoes with an optional prefix.
func NewLocalModel(prefix string) *LocalModel {
	return &LocalModel{Prefix: prefix}
}

// Invoke implements domain.ChatModel.
func (m *LocalModel) Invoke(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	var text string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			text = messages[i].Content
			break
		}
	}
	return domain.Message{Role: domain.RoleAssistant, Content: fmt.Sprintf("%s%s", m.Prefix, text)}, nil
}

// Ensure LocalModel implements domain.ChatModel at compile time.
var _ domain.ChatModel = (*LocalModel)(nil)
