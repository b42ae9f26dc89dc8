package domain

import "context"

// ChatModel is the model-agnostic backend interface. Implementations may be
// OpenAI, Anthropic, Gemini, local stubs, or test doubles.
type ChatModel interface {
	// Invoke sends the ordered conversation and the tool schemas (may be nil)
	// and returns exactly one assistant message, optionally carrying tool requests.
	Invoke(ctx context.Context, messages []Message, tools []ToolDefinition) (Message, error)
}

// Tokenizer counts tokens in a string for LLM context window management.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text.
	CountTokens(text string) (int, error)
}

// ContextManager fits messages into a model's context window.
type ContextManager interface {
	// FitToWindow takes messages and a system prompt, and returns messages
	// that fit within the configured token limit. The system prompt tokens
	// are always reserved. Older messages are dropped first (sliding window).
	FitToWindow(messages []Message, systemPrompt string) ([]Message, error)
}

// TranscriptSink receives every message appended to a conversation, in order.
// Sinks are read-only consumers and must not retain or mutate the message.
type TranscriptSink interface {
	Append(msg Message) error
}
