package tooling

import (
	"fmt"

	"agentloop/internal/domain"
)

type builtin struct {
	name        string
	description string
	input       any
	exec        Executable
}

var builtins = []builtin{
	{"get_weather", "Retorna a previsão do tempo para uma cidade.", WeatherInput{}, GetWeather},
	{"calculate_sum", "Soma dois números inteiros.", SumInput{}, CalculateSum},
	{"weather_forecast", "Fornece a previsão do tempo para uma cidade. Entrada esperada: nome da cidade.", ForecastInput{}, WeatherForecast},
	{"currency_converter", "Converte valores entre moedas. Entrada esperada: exemplo '100 USD para BRL'.", CurrencyInput{}, ConvertCurrency},
	{"show_catalog", "Mostra ao usuário o que ele pode pedir (ex: previsão do tempo, conversão de moeda, busca).", CatalogInput{}, ShowCatalog},
}

// pageFetcher backs fetch_page in RegisterDefaults; tests replace it.
var pageFetcher PageFetcher = NewHTTPFetcher()

// RegisterDefaults registers the demo tools and fetch_page on r.
func RegisterDefaults(r *Registry) error {
	for _, b := range builtins {
		params, err := SchemaFor(b.input)
		if err != nil {
			return fmt.Errorf("tooling: schema for %s: %w", b.name, err)
		}
		d := domain.ToolDefinition{Name: b.name, Description: b.description, Parameters: params}
		if _, err := r.Register(d, b.exec); err != nil {
			return err
		}
	}

	params, err := SchemaFor(FetchPageInput{})
	if err != nil {
		return fmt.Errorf("tooling: schema for fetch_page: %w", err)
	}
	fetch := domain.ToolDefinition{
		Name:        "fetch_page",
		Description: "Busca uma página web e retorna o texto principal. Use para pesquisar informações gerais.",
		Parameters:  params,
	}
	_, err = r.Register(fetch, NewFetchPage(pageFetcher), WithArgValidation())
	return err
}
