package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"agentloop/internal/domain"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIModel calls an OpenAI-compatible Chat Completions endpoint with
// function calling. OpenRouter and Ollama are served by the same type with a
// different base URL.
type OpenAIModel struct {
	client      *openai.Client
	name        string // provider label used in errors
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIModel returns an OpenAI-backed ChatModel. cfg.BaseURL, when set,
// replaces the default endpoint.
func NewOpenAIModel(apiKey string, cfg domain.ModelConfig) *OpenAIModel {
	return newOpenAICompatible("openai", apiKey, "", defaultOpenAIModel, cfg)
}

func newOpenAICompatible(name, apiKey, baseURL, defaultModel string, cfg domain.ModelConfig) *OpenAIModel {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &OpenAIModel{
		client:      openai.NewClientWithConfig(clientCfg),
		name:        name,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Invoke implements domain.ChatModel.
func (m *OpenAIModel) Invoke(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    toOpenAIMessages(messages),
		Tools:       toOpenAITools(tools),
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	}
	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%s: %w", m.name, err)
	}
	if len(resp.Choices) == 0 {
		return domain.Message{}, fmt.Errorf("%s: %w", m.name, errNoChoices)
	}
	msg, err := fromOpenAIMessage(resp.Choices[0].Message)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%s: %w", m.name, err)
	}
	return msg, nil
}

var errNoChoices = errors.New("no choices in response")

func toOpenAIMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content})
		case domain.RoleAssistant:
			am := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				am.ToolCalls = append(am.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments.JSON()),
					},
				})
			}
			out = append(out, am)
		case domain.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				Name:       msg.Name,
				ToolCallID: msg.ToolCallID,
			})
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		}
	}
	return out
}

func toOpenAITools(defs []domain.ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return tools
}

// fromOpenAIMessage converts a completion message. Undecodable tool-call
// arguments are an error.
func fromOpenAIMessage(msg openai.ChatCompletionMessage) (domain.Message, error) {
	out := domain.Message{Role: domain.RoleAssistant, Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		args, err := domain.DecodeArgs([]byte(tc.Function.Arguments))
		if err != nil {
			return domain.Message{}, fmt.Errorf("tool call %q: %w", tc.Function.Name, err)
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

var _ domain.ChatModel = (*OpenAIModel)(nil)
