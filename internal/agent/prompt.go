package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSystemPrompt is the research-assistant instruction used when no
// other prompt is configured.
const DefaultSystemPrompt = `Você é um assistente de pesquisa inteligente. Use as ferramentas disponíveis para procurar informações.
Você pode fazer várias chamadas (tanto de uma vez quanto em sequência).
Só procure informações quando tiver certeza do que está buscando.
Se precisar buscar algo antes de fazer uma pergunta de acompanhamento, está autorizado a fazer isso!`

// ErrEmptyPrompt is returned by LoadSystemPrompt for a blank prompt file.
var ErrEmptyPrompt = errors.New("agent: system prompt file is empty")

// LoadSystemPrompt reads a system prompt from a text or markdown file. The
// path is cleaned and surrounding whitespace trimmed.
func LoadSystemPrompt(path string) (string, error) {
	path = filepath.Clean(path)
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("agent: system prompt: %w", err)
	}
	if fi.IsDir() {
		return "", fmt.Errorf("agent: system prompt: %s is a directory", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("agent: system prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(b))
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	return prompt, nil
}
