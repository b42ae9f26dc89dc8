package router

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// ErrInvalidCatalog is returned when a catalog document cannot be used.
var ErrInvalidCatalog = errors.New("router: invalid catalog")

// Parameter is one declared input of an operation. Type is a free-form hint
// such as "string", "date", "currency" or "number".
type Parameter struct {
	Name        string `yaml:"-"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
}

// Operation is a named entry of the catalog.
type Operation struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// Parameter returns the declared parameter called name.
func (o Operation) Parameter(name string) (Parameter, bool) {
	for _, p := range o.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// SchemaJSON renders the parameter declarations as indented JSON, in
// declaration order, for inclusion in the extraction prompt.
func (o Operation) SchemaJSON() string {
	var b strings.Builder
	b.WriteString("{")
	for i, p := range o.Parameters {
		if i > 0 {
			b.WriteString(",")
		}
		name, _ := json.Marshal(p.Name)
		fields := map[string]string{"type": p.Type}
		if p.Description != "" {
			fields["description"] = p.Description
		}
		body, _ := json.MarshalIndent(fields, "  ", "  ")
		fmt.Fprintf(&b, "\n  %s: %s", name, body)
	}
	if len(o.Parameters) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

// Catalog is an ordered, read-only set of operations.
type Catalog struct {
	ops   []Operation
	index map[string]int
}

// NewCatalog builds a catalog from ops. Names must be non-empty and unique.
func NewCatalog(ops ...Operation) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(ops))}
	for _, op := range ops {
		name := strings.TrimSpace(op.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: operation name must not be empty", ErrInvalidCatalog)
		}
		if name == Unknown {
			return nil, fmt.Errorf("%w: %q is reserved", ErrInvalidCatalog, Unknown)
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate operation %q", ErrInvalidCatalog, name)
		}
		op.Name = name
		op.Parameters = append([]Parameter(nil), op.Parameters...)
		c.index[name] = len(c.ops)
		c.ops = append(c.ops, op)
	}
	return c, nil
}

// ParseCatalog decodes a YAML (or JSON) mapping of operation name to
// {description, parameters}. Key order in the document is kept.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if len(doc.Content) == 0 {
		return NewCatalog()
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping of operations", ErrInvalidCatalog)
	}

	ops := make([]Operation, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		op, err := decodeOperation(root.Content[i].Value, root.Content[i+1])
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return NewCatalog(ops...)
}

// operationDoc mirrors one catalog entry; parameters stay a node so their
// order survives decoding.
type operationDoc struct {
	Description string    `yaml:"description"`
	Parameters  yaml.Node `yaml:"parameters"`
}

func decodeOperation(name string, node *yaml.Node) (Operation, error) {
	var doc operationDoc
	if err := node.Decode(&doc); err != nil {
		return Operation{}, fmt.Errorf("%w: operation %q: %w", ErrInvalidCatalog, name, err)
	}
	op := Operation{Name: name, Description: strings.TrimSpace(doc.Description)}

	params := &doc.Parameters
	if params.Kind == 0 || params.Tag == "!!null" {
		return op, nil
	}
	if params.Kind != yaml.MappingNode {
		return Operation{}, fmt.Errorf("%w: operation %q: parameters must be a mapping", ErrInvalidCatalog, name)
	}
	for i := 0; i+1 < len(params.Content); i += 2 {
		var p Parameter
		if err := params.Content[i+1].Decode(&p); err != nil {
			return Operation{}, fmt.Errorf("%w: operation %q parameter %q: %w", ErrInvalidCatalog, name, params.Content[i].Value, err)
		}
		p.Name = params.Content[i].Value
		if p.Type == "" {
			p.Type = "string"
		}
		op.Parameters = append(op.Parameters, p)
	}
	return op, nil
}

// readFile is injectable for tests.
var readFile = os.ReadFile

// LoadCatalog reads a catalog file from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("router: reading catalog: %w", err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the built-in scheduling and payments catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic("router: built-in catalog: " + err.Error())
	}
	return c
}

// Lookup returns the operation named name. Matching is case-sensitive.
func (c *Catalog) Lookup(name string) (Operation, bool) {
	i, ok := c.index[name]
	if !ok {
		return Operation{}, false
	}
	return c.ops[i], true
}

// Names returns operation names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.ops))
	for i, op := range c.ops {
		names[i] = op.Name
	}
	return names
}

// Operations returns a copy of the operations in catalog order.
func (c *Catalog) Operations() []Operation {
	return append([]Operation(nil), c.ops...)
}

// Len returns the number of operations.
func (c *Catalog) Len() int { return len(c.ops) }
