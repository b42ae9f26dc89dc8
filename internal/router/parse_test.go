package router

import (
	"errors"
	"testing"
)

func TestNormalizeSelection(t *testing.T) {
	tests := map[string]string{
		"agendar_sessao":       "agendar_sessao",
		"  agendar_sessao \n":  "agendar_sessao",
		"\"UNKNOWN\"":          "UNKNOWN",
		"'cancelar_sessao'.":   "cancelar_sessao",
		"```agendar_sessao```": "agendar_sessao",
		"agendar_sessao. ":     "agendar_sessao",
		"Agendar_sessao":       "Agendar_sessao",
	}
	for in, want := range tests {
		if got := normalizeSelection(in); got != want {
			t.Errorf("normalizeSelection(%q): want %q, got %q", in, want, got)
		}
	}
}

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  map[string]any
	}{
		{"plain", `{"function":"f","parameters":{"nome":"Ana"}}`, map[string]any{"nome": "Ana"}},
		{"fenced", "```json\n{\"function\":\"f\",\"parameters\":{\"nome\":\"Ana\"}}\n```", map[string]any{"nome": "Ana"}},
		{"prose", "Claro! {\"parameters\":{\"nome\":\"Ana\"}} Espero ter ajudado.", map[string]any{"nome": "Ana"}},
		{"function only", `{"function":"f"}`, map[string]any{}},
		{"bare parameters", `{"nome":"Ana"}`, map[string]any{"nome": "Ana"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseExtraction(tt.reply)
			if err != nil {
				t.Fatalf("parseExtraction: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s: want %v, got %v", k, v, got[k])
				}
			}
		})
	}
}

func TestParseExtraction_WhenNoObject_ShouldFail(t *testing.T) {
	for _, reply := range []string{"", "nenhum parâmetro", "} {", `{"parameters": [1,2]}`} {
		if _, err := parseExtraction(reply); !errors.Is(err, ErrMalformedReply) {
			t.Errorf("reply %q: want ErrMalformedReply, got %v", reply, err)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"2025-04-10":           "2025-04-10",
		"10/04/2025":           "2025-04-10",
		"1/4/2025":             "2025-04-01",
		"10.04.2025":           "2025-04-10",
		"10-04-2025":           "2025-04-10",
		"2025/04/10":           "2025-04-10",
		"2025-04-10T09:00:00Z": "2025-04-10",
		"dia 13":               "dia 13",
	}
	for in, want := range tests {
		if got := normalizeDate(in); got != want {
			t.Errorf("normalizeDate(%q): want %q, got %q", in, want, got)
		}
	}
}

func TestCleanParameters_ShouldTrimAndNormalize(t *testing.T) {
	op, _ := DefaultCatalog().Lookup("agendar_sessao")
	got := cleanParameters(op, map[string]any{"nome": "  Fabiano ", "data": "10/04/2025", "hora": "10h"})
	if len(got) != 2 || got["nome"] != "Fabiano" || got["data"] != "2025-04-10" {
		t.Errorf("unexpected parameters: %v", got)
	}
}
