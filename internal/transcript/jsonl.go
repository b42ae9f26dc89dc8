package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"agentloop/internal/domain"
)

// writeFunc is used to write content so tests can inject a failing implementation.
type writeFunc func(f *os.File, data []byte) (int, error)

// marshalFunc is the JSON marshaling function; tests may replace it to force errors.
type marshalFunc func(v any) ([]byte, error)

// JSONLWriter records messages to a JSONL file (one JSON object per line).
// It is a write-only transcript; runs never read it back into a conversation.
type JSONLWriter struct {
	mu        sync.Mutex
	path      string
	writeFn   writeFunc   // nil means use f.Write
	marshalFn marshalFunc // nil means use json.Marshal
}

// NewJSONLWriter returns a JSONLWriter appending to path. The path is cleaned.
func NewJSONLWriter(path string) *JSONLWriter {
	return &JSONLWriter{path: filepath.Clean(path)}
}

// Path returns the file being written.
func (j *JSONLWriter) Path() string { return j.path }

// Append serializes msg and appends it as a single line.
func (j *JSONLWriter) Append(msg domain.Message) error {
	marshal := json.Marshal
	if j.marshalFn != nil {
		marshal = j.marshalFn
	}
	data, err := marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	var writeErr error
	if j.writeFn != nil {
		_, writeErr = j.writeFn(f, data)
	} else {
		_, writeErr = f.Write(data)
	}
	closeErr := f.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

// ReadJSONL reads the last n messages of a transcript file for display.
// n <= 0 reads all of them. A missing file yields no messages; corrupt lines are skipped.
func ReadJSONL(path string, n int) ([]domain.Message, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	msgs := make([]domain.Message, 0, len(lines))
	for _, line := range lines {
		var msg domain.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

var _ domain.TranscriptSink = (*JSONLWriter)(nil)
