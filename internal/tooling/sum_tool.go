package tooling

import (
	"context"

	"agentloop/internal/domain"
)

// SumInput is the argument struct for calculate_sum.
type SumInput struct {
	A float64 `json:"a" jsonschema:"description=Primeiro número"`
	B float64 `json:"b" jsonschema:"description=Segundo número"`
}

// CalculateSum adds two integers. Numeric strings and floats are accepted
// and truncated, since models often send "2" instead of 2.
func CalculateSum(ctx context.Context, args domain.Args) (any, error) {
	a, err := args.Int("a")
	if err != nil {
		return nil, err
	}
	b, err := args.Int("b")
	if err != nil {
		return nil, err
	}
	return a + b, nil
}
