package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedReply is returned when the extraction reply holds no JSON object.
var ErrMalformedReply = errors.New("router: malformed extraction reply")

// normalizeSelection strips what models commonly wrap a bare name in:
// whitespace, quotes, backticks and a trailing period.
func normalizeSelection(reply string) string {
	s := reply
	for {
		prev := s
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, ".")
		s = strings.Trim(s, "\"'`")
		if s == prev {
			return s
		}
	}
}

// extraction mirrors the reply object of the extraction prompt.
type extraction struct {
	Function   *string        `json:"function"`
	Parameters map[string]any `json:"parameters"`
}

// parseExtraction pulls the parameter mapping out of a model reply. Code
// fences and prose around the JSON object are ignored. A bare object with
// neither "function" nor "parameters" is taken as the parameters themselves.
func parseExtraction(reply string) (map[string]any, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in %q", ErrMalformedReply, truncate(reply, 80))
	}
	body := []byte(reply[start : end+1])

	var ex extraction
	if err := json.Unmarshal(body, &ex); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedReply, err)
	}
	if ex.Function == nil && ex.Parameters == nil {
		var bare map[string]any
		if err := json.Unmarshal(body, &bare); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedReply, err)
		}
		return bare, nil
	}
	if ex.Parameters == nil {
		return map[string]any{}, nil
	}
	return ex.Parameters, nil
}

// cleanParameters keeps only declared parameters with a usable value. Strings
// are trimmed and dates normalized to YYYY-MM-DD when recognizable.
func cleanParameters(op Operation, params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for name, v := range params {
		p, ok := op.Parameter(name)
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if p.Type == "date" {
				s = normalizeDate(s)
			}
			v = s
		}
		out[name] = v
	}
	return out
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
	time.RFC3339,
}

// normalizeDate rewrites s as YYYY-MM-DD when it matches a known layout.
// Day-first layouts win over month-first ones. Unrecognized values are
// returned unchanged.
func normalizeDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
