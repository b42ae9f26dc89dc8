package tokenizer

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"agentloop/internal/domain"
)

// DefaultEncoding is used when neither an encoding nor a known model is given.
const DefaultEncoding = "cl100k_base"

// getEncoding and encodingForModel are swapped in tests to avoid downloading
// BPE files.
var (
	getEncoding      = tiktoken.GetEncoding
	encodingForModel = tiktoken.EncodingForModel
)

// TikToken counts tokens with a tiktoken BPE encoding.
type TikToken struct {
	name     string
	encoding *tiktoken.Tiktoken
}

// NewTikToken loads the named encoding, e.g. "cl100k_base" or "o200k_base".
func NewTikToken(encodingName string) (*TikToken, error) {
	enc, err := getEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: unknown encoding %q: %w", encodingName, err)
	}
	return &TikToken{name: encodingName, encoding: enc}, nil
}

// ForWindow picks the tokenizer for a context window: the configured
// encoding when set, else the one tiktoken maps model to, else
// DefaultEncoding. Models from non-OpenAI providers land on the default.
func ForWindow(encodingName, model string) (*TikToken, error) {
	if encodingName != "" {
		return NewTikToken(encodingName)
	}
	if model != "" {
		if enc, err := encodingForModel(model); err == nil {
			return &TikToken{name: model, encoding: enc}, nil
		}
	}
	return NewTikToken(DefaultEncoding)
}

// Name is the encoding (or model) the tokenizer was built for.
func (t *TikToken) Name() string { return t.name }

// CountTokens implements domain.Tokenizer.
func (t *TikToken) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return len(t.encoding.Encode(text, nil, nil)), nil
}

var _ domain.Tokenizer = (*TikToken)(nil)
