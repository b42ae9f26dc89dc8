package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"agentloop/internal/domain"
)

const (
	defaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 1024
)

// AnthropicModel calls the Anthropic Messages API with tool use.
type AnthropicModel struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float32
}

// NewAnthropicModel returns an Anthropic-backed ChatModel. The SDK's own
// request retries are disabled.
func NewAnthropicModel(apiKey string, cfg domain.ModelConfig) *AnthropicModel {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicModel{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

// Invoke implements domain.ChatModel.
func (m *AnthropicModel) Invoke(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	system, msgs := toAnthropicMessages(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: m.maxTokens,
		System:    system,
		Messages:  msgs,
		Tools:     toAnthropicTools(tools),
	}
	if m.temperature > 0 {
		params.Temperature = anthropic.Float(float64(m.temperature))
	}
	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return domain.Message{}, fmt.Errorf("anthropic: %w", err)
	}
	return fromAnthropicContent(resp.Content)
}

// toAnthropicMessages splits out system text and groups the rest into
// alternating turns. Tool results travel as tool_result blocks of a user
// turn, so consecutive tool and user messages share one turn.
func toAnthropicMessages(messages []domain.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var out []anthropic.MessageParam
	var blocks []anthropic.ContentBlockParamUnion
	assistantTurn := false

	flush := func() {
		if len(blocks) == 0 {
			return
		}
		if assistantTurn {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
		blocks = nil
	}
	turn := func(assistant bool) {
		if assistant != assistantTurn {
			flush()
			assistantTurn = assistant
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			if msg.Content != "" {
				system = append(system, anthropic.TextBlockParam{Text: msg.Content})
			}
		case domain.RoleAssistant:
			turn(true)
			if strings.TrimSpace(msg.Content) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = domain.Args{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
		case domain.RoleTool:
			turn(false)
			blocks = append(blocks, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		default:
			turn(false)
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}
	}
	flush()
	return system, out
}

func toAnthropicTools(defs []domain.ToolDefinition) []anthropic.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		tool := anthropic.ToolParam{
			Name: def.Name,
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: def.Parameters.Properties,
				Required:   def.Parameters.Required,
			},
		}
		if def.Description != "" {
			tool.Description = anthropic.String(def.Description)
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return tools
}

// fromAnthropicContent joins text blocks and collects tool_use blocks.
func fromAnthropicContent(content []anthropic.ContentBlockUnion) (domain.Message, error) {
	out := domain.Message{Role: domain.RoleAssistant}
	var text strings.Builder
	for _, block := range content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args, err := domain.DecodeArgs(b.Input)
			if err != nil {
				return domain.Message{}, fmt.Errorf("anthropic: tool call %q: %w", b.Name, err)
			}
			out.ToolCalls = append(out.ToolCalls, domain.ToolRequest{ID: b.ID, Name: b.Name, Arguments: args})
		}
	}
	out.Content = text.String()
	return out, nil
}

var _ domain.ChatModel = (*AnthropicModel)(nil)
