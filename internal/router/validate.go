package router

import (
	"encoding/json"

	"agentloop/internal/tooling"
)

// parameterSchema maps a catalog type hint to a JSON schema for one value.
// Unrecognized hints accept anything.
func parameterSchema(typ string) string {
	switch typ {
	case "string", "text":
		return `{"type":"string","minLength":1}`
	case "date":
		return `{"type":"string","format":"date"}`
	case "currency":
		return `{"anyOf":[{"type":"number","minimum":0},{"type":"string","minLength":1}]}`
	case "number", "float", "decimal":
		return `{"type":"number"}`
	case "integer", "int":
		return `{"type":"integer"}`
	case "boolean", "bool":
		return `{"type":"boolean"}`
	default:
		return `{}`
	}
}

// validateParameters splits params into those that satisfy their declared
// type and a map of rejected names to the validation error.
func validateParameters(op Operation, params map[string]any) (map[string]any, map[string]string) {
	valid := make(map[string]any, len(params))
	var rejected map[string]string
	for name, v := range params {
		p, _ := op.Parameter(name)
		raw, err := json.Marshal(v)
		if err == nil {
			err = tooling.ValidateAgainstSchema(raw, parameterSchema(p.Type))
		}
		if err != nil {
			if rejected == nil {
				rejected = make(map[string]string)
			}
			rejected[name] = err.Error()
			continue
		}
		valid[name] = v
	}
	return valid, rejected
}
