package tooling

import (
	"encoding/json"
	"fmt"
	"strings"

	invopopSchema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"agentloop/internal/domain"
)

// marshalFunc is the JSON marshaler used by SchemaFor. Package-level so tests
// can inject a failing marshaler to cover the error return path.
var marshalFunc = json.Marshal

// SchemaFor reflects a Go input struct into a parameter schema using
// invopop/jsonschema. Field descriptions come from `jsonschema:"description=..."`
// tags; fields without omitempty are required.
func SchemaFor(input any) (domain.ParametersSchema, error) {
	reflector := invopopSchema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(input)

	raw, err := marshalFunc(schema)
	if err != nil {
		return domain.ParametersSchema{}, fmt.Errorf("tooling: marshal schema: %w", err)
	}
	var out domain.ParametersSchema
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.ParametersSchema{}, fmt.Errorf("tooling: decode schema: %w", err)
	}
	if out.Properties == nil {
		out.Properties = map[string]domain.PropertySchema{}
	}
	return out, nil
}

// MustSchemaFor is SchemaFor for static input structs; it panics on error.
func MustSchemaFor(input any) domain.ParametersSchema {
	s, err := SchemaFor(input)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateArgs validates args against a parameter schema.
func ValidateArgs(args domain.Args, schema domain.ParametersSchema) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	return ValidateAgainstSchema(args.JSON(), string(raw))
}

// ValidateAgainstSchema validates JSON input against a JSON Schema string.
// Format keywords (e.g. "date") are asserted, not just annotated.
func ValidateAgainstSchema(input json.RawMessage, schemaStr string) error {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource("schema.json", strings.NewReader(schemaStr)); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	var inputData interface{}
	if err := json.Unmarshal(input, &inputData); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}

	if err := schema.Validate(inputData); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}
