package router

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalog_ShouldKeepDeclarationOrder(t *testing.T) {
	c := DefaultCatalog()
	want := []string{"agendar_sessao", "cancelar_sessao", "registrar_pagamento"}
	if got := c.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("want %v, got %v", want, got)
	}
	op, ok := c.Lookup("registrar_pagamento")
	if !ok {
		t.Fatal("registrar_pagamento missing")
	}
	var names []string
	for _, p := range op.Parameters {
		names = append(names, p.Name+":"+p.Type)
	}
	if strings.Join(names, ",") != "nome:string,data:date,valor:currency" {
		t.Errorf("unexpected parameters: %v", names)
	}
}

func TestCatalog_Lookup_ShouldBeCaseSensitive(t *testing.T) {
	if _, ok := DefaultCatalog().Lookup("AGENDAR_SESSAO"); ok {
		t.Error("lookup must be case-sensitive")
	}
}

func TestParseCatalog_WhenParametersOmitted_ShouldAllowOperation(t *testing.T) {
	c, err := ParseCatalog([]byte("saudar:\n  description: Cumprimenta o usuário\n"))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	op, _ := c.Lookup("saudar")
	if op.Description != "Cumprimenta o usuário" || len(op.Parameters) != 0 {
		t.Errorf("unexpected operation: %+v", op)
	}
	if op.SchemaJSON() != "{}" {
		t.Errorf("want {}, got %s", op.SchemaJSON())
	}
}

func TestParseCatalog_ShouldAcceptJSON(t *testing.T) {
	c, err := ParseCatalog([]byte(`{"b_op": {"description": "b", "parameters": {"x": {}}}, "a_op": {"description": "a"}}`))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if strings.Join(c.Names(), ",") != "b_op,a_op" {
		t.Errorf("order not kept: %v", c.Names())
	}
	op, _ := c.Lookup("b_op")
	if op.Parameters[0].Type != "string" {
		t.Errorf("missing type should default to string, got %q", op.Parameters[0].Type)
	}
}

func TestParseCatalog_WhenInvalid_ShouldReturnErrInvalidCatalog(t *testing.T) {
	tests := map[string]string{
		"not a mapping":      "- a\n- b\n",
		"bad yaml":           "a: [",
		"parameters list":    "a:\n  parameters: [x]\n",
		"reserved name":      "UNKNOWN:\n  description: x\n",
		"bad parameter type": "a:\n  parameters:\n    x: [1]\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCatalog([]byte(doc)); !errors.Is(err, ErrInvalidCatalog) {
				t.Errorf("want ErrInvalidCatalog, got %v", err)
			}
		})
	}
}

func TestNewCatalog_WhenDuplicateOrEmptyName_ShouldFail(t *testing.T) {
	if _, err := NewCatalog(Operation{Name: "a"}, Operation{Name: "a"}); !errors.Is(err, ErrInvalidCatalog) {
		t.Errorf("duplicate: want ErrInvalidCatalog, got %v", err)
	}
	if _, err := NewCatalog(Operation{Name: " "}); !errors.Is(err, ErrInvalidCatalog) {
		t.Errorf("empty: want ErrInvalidCatalog, got %v", err)
	}
}

func TestLoadCatalog_ShouldReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("listar_sessoes:\n  description: Lista sessões\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("want 1 operation, got %d", c.Len())
	}
}

func TestLoadCatalog_WhenReadFails_ShouldWrapError(t *testing.T) {
	orig := readFile
	defer func() { readFile = orig }()
	readFile = func(string) ([]byte, error) { return nil, os.ErrPermission }

	if _, err := LoadCatalog("x.yaml"); !errors.Is(err, os.ErrPermission) {
		t.Errorf("want ErrPermission, got %v", err)
	}
}

func TestOperation_SchemaJSON_ShouldBeValidOrderedJSON(t *testing.T) {
	op, _ := DefaultCatalog().Lookup("agendar_sessao")
	s := op.SchemaJSON()
	var decoded map[string]map[string]string
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		t.Fatalf("invalid JSON %s: %v", s, err)
	}
	if decoded["data"]["type"] != "date" {
		t.Errorf("unexpected schema: %s", s)
	}
	if strings.Index(s, `"nome"`) > strings.Index(s, `"data"`) {
		t.Errorf("declaration order lost: %s", s)
	}
}
