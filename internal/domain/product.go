package domain

import (
	"strings"
	"time"
)

// NormalizedProduct es la representacion agnostica del proveedor, la unica que entra al cache compartido.
// No lleva ningun campo derivado de un usuario.
type NormalizedProduct struct {
	ID           string   `json:"id"`
	Source       string   `json:"source"`
	Name         string   `json:"name"`
	Price        *int     `json:"price"`
	ImageURL     string   `json:"image_url"`
	AffiliateURL string   `json:"affiliate_url"`
	OriginalURL  string   `json:"original_url"`
	Rating       *float64 `json:"rating"` // escala 0-5
}

// HasImage indica si el producto tiene imagen utilizable.
func (p NormalizedProduct) HasImage() bool {
	return strings.TrimSpace(p.ImageURL) != ""
}

// DedupKey identifica un producto entre fuentes.
func (p NormalizedProduct) DedupKey() string {
	return p.Source + ":" + p.ID
}

// CountImages cuenta los productos con imagen.
func CountImages(products []NormalizedProduct) int {
	n := 0
	for _, p := range products {
		if p.HasImage() {
			n++
		}
	}
	return n
}

// ProductHit es un producto junto con la palabra clave que lo trajo y su posicion nativa en el proveedor.
// Vive solo durante un request.
type ProductHit struct {
	Product NormalizedProduct
	Keyword string
	Rank    int
}

// CacheEntry es lo que se persiste en el cache compartido por (categoria, keyword normalizada).
type CacheEntry struct {
	Category  Category            `json:"category"`
	Keyword   string              `json:"keyword"`
	Products  []NormalizedProduct `json:"products"`
	CachedAt  time.Time           `json:"cached_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// CacheEntryStatus resume una entrada para la superficie de debug.
type CacheEntryStatus struct {
	Keyword      string    `json:"keyword"`
	ProductCount int       `json:"product_count"`
	ImageCount   int       `json:"image_count"`
	CachedAt     time.Time `json:"cached_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Expired      bool      `json:"expired"`
	Corrupt      bool      `json:"corrupt"`
}

// CacheStatus agrupa las entradas de una categoria.
type CacheStatus struct {
	Category Category           `json:"category"`
	Backend  string             `json:"backend"`
	Entries  []CacheEntryStatus `json:"entries"`
}
