package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// =============================================================================
// Core Configuration
// =============================================================================

type Config struct {
	Agent  AgentConfig  `json:"agent"`
	Router RouterConfig `json:"router"`
	Retry  RetryConfig  `json:"retry"`
	Infra  InfraConfig  `json:"infra"`
}

// ModelConfig selects a chat model backend.
type ModelConfig struct {
	Provider    string  `json:"provider"` // "local" | "openai" | "openrouter" | "ollama" | "anthropic" | "gemini"
	Model       string  `json:"model"`
	BaseURL     string  `json:"baseUrl,omitempty"` // overrides the provider's default endpoint
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
}

type AgentConfig struct {
	Model           ModelConfig         `json:"model"`
	SystemPrompt    string              `json:"systemPrompt"`
	MaxSteps        int                 `json:"maxSteps"`       // model invocations per run (0 = default)
	TimeoutSeconds  int                 `json:"timeoutSeconds"` // wall-clock cap per run (0 = none)
	FailOnToolError bool                `json:"failOnToolError"`
	ContextWindow   ContextWindowConfig `json:"contextWindow"`
}

// ContextWindowConfig enables token-budgeted history trimming. MaxTokens 0 disables it.
type ContextWindowConfig struct {
	MaxTokens int    `json:"maxTokens"`
	Encoding  string `json:"encoding"` // tiktoken encoding, e.g. "cl100k_base"
}

type RouterConfig struct {
	Model              ModelConfig `json:"model"`
	CatalogPath        string      `json:"catalogPath,omitempty"` // empty uses the built-in catalog
	ValidateParameters bool        `json:"validateParameters"`
}

// RetryConfig controls retries of failing tool executions.
type RetryConfig struct {
	MaxRetries     int `json:"maxRetries"`     // Maximum retry attempts (0 = no retries)
	InitialBackoff int `json:"initialBackoff"` // Initial backoff in milliseconds
	MaxBackoff     int `json:"maxBackoff"`     // Maximum backoff in milliseconds
	Multiplier     int `json:"multiplier"`     // Backoff multiplier (e.g. 2 for exponential doubling)
}

type InfraConfig struct {
	LogFormat string `json:"logFormat"` // "json" | "text"
	LogLevel  string `json:"logLevel"`
}

// =============================================================================
// Messaging Protocol
// =============================================================================

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is one entry of a conversation. Assistant messages may carry tool
// requests; tool messages answer exactly one request via ToolCallID.
type Message struct {
	Role       MessageRole   `json:"role"`
	Content    string        `json:"content"`
	ToolCalls  []ToolRequest `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	Name       string        `json:"name,omitempty"`
}

// ToolRequest is a model-emitted instruction to run a tool.
type ToolRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments Args   `json:"arguments"`
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewToolResultMessage answers req with content.
func NewToolResultMessage(req ToolRequest, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: req.ID, Name: req.Name}
}

// HasToolCalls reports whether an assistant message requests at least one tool.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// =============================================================================
// Tool arguments
// =============================================================================

// Args holds tool arguments as decoded from model output. Values are untyped;
// tools coerce them with the accessors below.
type Args map[string]any

// DecodeArgs parses a JSON object. Empty input yields empty Args.
func DecodeArgs(raw []byte) (Args, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Args{}, nil
	}
	var a Args
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if a == nil {
		a = Args{}
	}
	return a, nil
}

// JSON encodes the arguments; nil Args encode as {}.
func (a Args) JSON() []byte {
	if a == nil {
		return []byte("{}")
	}
	b, err := json.Marshal(a)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// String returns the named argument as text. Numbers and booleans are formatted.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", fmt.Errorf("argument %q is missing", key)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("argument %q: want text, got %T", key, v)
	}
}

// Float returns the named argument as a number, accepting numeric strings
// with either '.' or ',' as decimal separator.
func (a Args) Float(key string) (float64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("argument %q is missing", key)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q: %q is not a number", key, t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("argument %q: want number, got %T", key, v)
	}
}

// Int returns the named argument truncated to an integer.
func (a Args) Int(key string) (int, error) {
	f, err := a.Float(key)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("argument %q is not finite", key)
	}
	// -float64(math.MinInt) is the first value past math.MaxInt.
	if f < float64(math.MinInt) || f >= -float64(math.MinInt) {
		return 0, fmt.Errorf("argument %q: %g is out of integer range", key, f)
	}
	return int(f), nil
}

// =============================================================================
// Tooling
// =============================================================================

// ToolDefinition is the schema presented to the model for one tool.
type ToolDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Parameters  ParametersSchema `json:"parameters"`
}

// ParametersSchema is the JSON-schema object describing a tool's arguments.
type ParametersSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

type PropertySchema struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Format      string `json:"format,omitempty"`
}
