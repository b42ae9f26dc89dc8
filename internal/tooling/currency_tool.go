package tooling

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"agentloop/internal/domain"
)

// CurrencyInput is the argument struct for currency_converter.
type CurrencyInput struct {
	Valor        float64 `json:"valor" jsonschema:"description=Valor a converter"`
	MoedaOrigem  string  `json:"moeda_origem" jsonschema:"description=Código da moeda de origem (ex: USD)"`
	MoedaDestino string  `json:"moeda_destino" jsonschema:"description=Código da moeda de destino (ex: BRL)"`
}

// ConvertCurrency simulates a conversion; the result is fixed.
func ConvertCurrency(ctx context.Context, args domain.Args) (any, error) {
	valor, err := args.Float("valor")
	if err != nil {
		return nil, err
	}
	from, err := args.String("moeda_origem")
	if err != nil {
		return nil, err
	}
	to, err := args.String("moeda_destino")
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("Conversão simulada de: %s %s para %s. Resultado: R$ 520,00.",
		strconv.FormatFloat(valor, 'f', -1, 64), strings.ToUpper(from), strings.ToUpper(to)), nil
}
