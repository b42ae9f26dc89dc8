package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"agentloop/internal/domain"
)

const defaultGeminiModel = "gemini-1.5-flash"

// newGenaiClient is the client constructor. Package-level var for test injection.
var newGenaiClient = func(ctx context.Context, opts ...option.ClientOption) (*genai.Client, error) {
	return genai.NewClient(ctx, opts...)
}

// GeminiModel calls Google Gemini with function declarations. Gemini does not
// assign call IDs; requests come back without one and the agent loop numbers
// them across the whole conversation.
type GeminiModel struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewGeminiModel returns a Gemini-backed ChatModel. Call Close when done.
func NewGeminiModel(ctx context.Context, apiKey string, cfg domain.ModelConfig) (*GeminiModel, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := newGenaiClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiModel{client: client, model: model, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens}, nil
}

// Close releases the underlying client.
func (m *GeminiModel) Close() error {
	return m.client.Close()
}

var errEmptyGeminiResponse = errors.New("gemini: empty response")

// Invoke implements domain.ChatModel.
func (m *GeminiModel) Invoke(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	system, contents := toGeminiContents(messages)
	if len(contents) == 0 {
		return domain.Message{}, errors.New("gemini: no user content to send")
	}

	gm := m.client.GenerativeModel(m.model)
	if system != nil {
		gm.SystemInstruction = system
	}
	gm.Tools = toGeminiTools(tools)
	if m.temperature > 0 {
		gm.SetTemperature(m.temperature)
	}
	if m.maxTokens > 0 {
		gm.SetMaxOutputTokens(int32(m.maxTokens))
	}

	chat := gm.StartChat()
	last := contents[len(contents)-1]
	chat.History = contents[:len(contents)-1]
	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		return domain.Message{}, fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return domain.Message{}, errEmptyGeminiResponse
	}
	return fromGeminiParts(resp.Candidates[0].Content.Parts), nil
}

// toGeminiContents converts messages into a system instruction and chat
// contents with roles "user" and "model". Tool results become function
// responses of a user turn; consecutive same-role entries are merged.
func toGeminiContents(messages []domain.Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	var out []*genai.Content
	add := func(role string, part genai.Part) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, part)
			return
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{part}})
	}

	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, genai.Text(msg.Content))
		case domain.RoleAssistant:
			if msg.Content != "" {
				add("model", genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				add("model", genai.FunctionCall{Name: tc.Name, Args: tc.Arguments})
			}
		case domain.RoleTool:
			add("user", genai.FunctionResponse{Name: msg.Name, Response: functionResponse(msg.Content)})
		default:
			add("user", genai.Text(msg.Content))
		}
	}
	return system, out
}

// functionResponse wraps tool output as the object Gemini expects. JSON
// object output is passed through, anything else goes under "content".
func functionResponse(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"content": content}
}

func toGeminiTools(defs []domain.ToolDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		decl := &genai.FunctionDeclaration{Name: def.Name, Description: def.Description}
		if len(def.Parameters.Properties) > 0 {
			schema := &genai.Schema{
				Type:       genai.TypeObject,
				Properties: make(map[string]*genai.Schema, len(def.Parameters.Properties)),
				Required:   def.Parameters.Required,
			}
			for name, prop := range def.Parameters.Properties {
				schema.Properties[name] = toGeminiSchema(prop)
			}
			decl.Parameters = schema
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func toGeminiSchema(prop domain.PropertySchema) *genai.Schema {
	s := &genai.Schema{Description: prop.Description}
	switch prop.Type {
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
		s.Items = &genai.Schema{Type: genai.TypeString}
	case "object":
		s.Type = genai.TypeObject
	default:
		s.Type = genai.TypeString
	}
	return s
}

// fromGeminiParts builds the assistant message. Function calls keep an empty
// ID, since any ID made up here would restart on every reply.
func fromGeminiParts(parts []genai.Part) domain.Message {
	out := domain.Message{Role: domain.RoleAssistant}
	for _, part := range parts {
		switch p := part.(type) {
		case genai.Text:
			out.Content += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, domain.ToolRequest{
				Name:      p.Name,
				Arguments: domain.Args(p.Args),
			})
		}
	}
	return out
}

var _ domain.ChatModel = (*GeminiModel)(nil)
