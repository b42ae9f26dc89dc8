package tooling

import (
	"context"

	"agentloop/internal/domain"
)

// CatalogInput is the argument struct for show_catalog.
type CatalogInput struct {
	Categoria string `json:"categoria,omitempty" jsonschema:"description=Categoria de interesse (opcional)"`
}

const catalogText = "Você pode pedir por:\n- previsão do tempo\n- conversão de moeda\n- buscar informações gerais."

// ShowCatalog lists what the user can ask for.
func ShowCatalog(ctx context.Context, args domain.Args) (any, error) {
	return catalogText, nil
}
