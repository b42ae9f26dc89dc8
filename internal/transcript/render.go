// Package transcript renders and records conversations.
package transcript

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"agentloop/internal/domain"
)

const rule = "----------------------------------------"

// Label returns the bracketed role label printed above a message.
func Label(msg domain.Message) string {
	switch msg.Role {
	case domain.RoleSystem:
		return "[system]"
	case domain.RoleUser:
		return "[user]"
	case domain.RoleAssistant:
		return "[assistant]"
	case domain.RoleTool:
		if msg.Name != "" {
			return fmt.Sprintf("[tool: %s]", msg.Name)
		}
		return "[tool]"
	default:
		return "[other]"
	}
}

// WriteMessage writes one labelled message followed by a rule. Tool calls of
// an assistant message are listed after its content.
func WriteMessage(w io.Writer, msg domain.Message) error {
	var b strings.Builder
	b.WriteString(Label(msg))
	b.WriteByte('\n')
	if msg.Content != "" {
		b.WriteString(msg.Content)
		b.WriteByte('\n')
	}
	for _, tc := range msg.ToolCalls {
		fmt.Fprintf(&b, "-> %s %s (%s)\n", tc.Name, tc.Arguments.JSON(), tc.ID)
	}
	b.WriteString(rule)
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// Render writes the whole conversation framed by a header and footer.
func Render(w io.Writer, messages []domain.Message) error {
	if _, err := io.WriteString(w, "\n===== conversation =====\n\n"); err != nil {
		return err
	}
	for _, msg := range messages {
		if err := WriteMessage(w, msg); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "========================\n\n")
	return err
}

// Printer is a TranscriptSink that renders each message as it is appended.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		panic("transcript: nil writer")
	}
	return &Printer{w: w}
}

// Append implements domain.TranscriptSink.
func (p *Printer) Append(msg domain.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return WriteMessage(p.w, msg)
}

var _ domain.TranscriptSink = (*Printer)(nil)
