package tooling

import (
	"context"
	"fmt"
	"strings"

	"agentloop/internal/domain"
)

// WeatherInput is the argument struct for get_weather.
type WeatherInput struct {
	City string `json:"city" jsonschema:"description=The name of the city"`
}

// ForecastInput is the argument struct for weather_forecast.
type ForecastInput struct {
	Cidade string `json:"cidade" jsonschema:"description=Nome da cidade"`
}

// WeatherReport is the structured result of get_weather.
type WeatherReport struct {
	Temp    string `json:"temp"`
	Clima   string `json:"clima"`
	Umidade string `json:"umidade"`
}

// GetWeather returns canned weather data for a city.
func GetWeather(ctx context.Context, args domain.Args) (any, error) {
	city, err := args.String("city")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(city) == "" {
		return nil, fmt.Errorf("city must not be empty")
	}
	return WeatherReport{Temp: "28°C", Clima: "Ensolarado", Umidade: "60%"}, nil
}

// WeatherForecast returns a canned forecast sentence.
func WeatherForecast(ctx context.Context, args domain.Args) (any, error) {
	city, err := args.String("cidade")
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("A previsão para %s é: Sol com nuvens e 25°C.", city), nil
}
