// Package sources contiene un adaptador por catalogo externo.
// Cada adaptador traduce la forma de su proveedor a domain.NormalizedProduct y
// descarta items incompletos uno por uno en lugar de fallar el lote.
package sources

import (
	"context"
	"strings"

	"github.com/goccy/go-json"

	"encounter-recs/internal/domain"
)

// Source busca productos en un catalogo externo.
// Search nunca devuelve error: ante cualquier fallo responde con lista vacia.
type Source interface {
	Name() string
	Search(ctx context.Context, keyword, hint string) []domain.NormalizedProduct
}

const (
	SourceMarketplace = "marketplace"
	SourceBooks       = "books"
	SourceMovies      = "movies"
)

// defaultHits es la cantidad de items pedida a cada proveedor por keyword.
const defaultHits = 10

// Registry resuelve que fuentes atienden cada categoria.
type Registry struct {
	byCategory map[domain.Category][]Source
}

func NewRegistry(byCategory map[domain.Category][]Source) *Registry {
	return &Registry{byCategory: byCategory}
}

// NewDefaultRegistry arma el ruteo estandar de categorias a fuentes.
func NewDefaultRegistry(market *MarketplaceSource, books *BookSource, movies *MovieSource) *Registry {
	marketBooks := market.WithFixedGenre(marketplaceBooksGenre)
	return NewRegistry(map[domain.Category][]Source{
		domain.CategoryBooks:  {books, marketBooks},
		domain.CategoryMovies: {movies},
		domain.CategoryGoods:  {market},
		domain.CategorySkills: {books, marketBooks},
	})
}

// For devuelve las fuentes de la categoria.
func (r *Registry) For(category domain.Category) []Source {
	if r == nil {
		return nil
	}
	return r.byCategory[category]
}

func upgradeHTTPS(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") {
		return "https://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// decodeItem decodifica un item individual; un item malformado se descarta sin afectar al resto.
func decodeItem(raw json.RawMessage, out any) bool {
	return json.Unmarshal(raw, out) == nil
}
