package sources

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"encounter-recs/internal/domain"
)

const marketplaceBooksGenre = "200162"

// marketplaceGenres traduce pistas del planner a genreId del marketplace.
var marketplaceGenres = map[string]string{
	"interior":   "100804",
	"stationery": "215783",
	"kitchen":    "558944",
	"outdoor":    "101070",
	"fashion":    "100371",
	"gadget":     "562637",
	"hobby":      "101164",
	"beauty":     "100939",
}

// MarketplaceConfig agrupa credenciales del marketplace.
type MarketplaceConfig struct {
	BaseURL     string
	AppID       string
	AffiliateID string
}

// MarketplaceSource busca items en la API de busqueda del marketplace.
type MarketplaceSource struct {
	cfg        MarketplaceConfig
	client     *client
	fixedGenre string
}

func NewMarketplaceSource(cfg MarketplaceConfig, opts ClientOptions, logger *zap.Logger) *MarketplaceSource {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &MarketplaceSource{
		cfg:    cfg,
		client: newClient(SourceMarketplace, opts, logger),
	}
}

// WithFixedGenre devuelve una vista del mismo cliente restringida a un genero.
// Comparte rate limit y breaker con el original.
func (s *MarketplaceSource) WithFixedGenre(genreID string) *MarketplaceSource {
	clone := *s
	clone.fixedGenre = genreID
	return &clone
}

func (s *MarketplaceSource) Name() string { return SourceMarketplace }

func (s *MarketplaceSource) Search(ctx context.Context, keyword, hint string) []domain.NormalizedProduct {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("keyword", keyword)
	q.Set("hits", strconv.Itoa(defaultHits))
	q.Set("imageFlag", "1")
	q.Set("availability", "1")
	if s.cfg.AppID != "" {
		q.Set("applicationId", s.cfg.AppID)
	}
	if s.cfg.AffiliateID != "" {
		q.Set("affiliateId", s.cfg.AffiliateID)
	}
	if genre := s.genreFor(hint); genre != "" {
		q.Set("genreId", genre)
	}

	var resp marketplaceResponse
	if err := s.client.getJSON(ctx, s.cfg.BaseURL, q, &resp); err != nil {
		s.client.absorb(keyword, err)
		return []domain.NormalizedProduct{}
	}

	out := make([]domain.NormalizedProduct, 0, len(resp.Items))
	for _, raw := range resp.Items {
		var wrapper struct {
			Item marketplaceItem `json:"Item"`
		}
		if !decodeItem(raw, &wrapper) {
			continue
		}
		if p, ok := normalizeMarketplaceItem(wrapper.Item); ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *MarketplaceSource) genreFor(hint string) string {
	if s.fixedGenre != "" {
		return s.fixedGenre
	}
	return marketplaceGenres[strings.ToLower(strings.TrimSpace(hint))]
}

func normalizeMarketplaceItem(item marketplaceItem) (domain.NormalizedProduct, bool) {
	code := strings.TrimSpace(item.ItemCode)
	name := strings.TrimSpace(item.ItemName)
	itemURL := strings.TrimSpace(item.ItemURL)
	if code == "" || name == "" || itemURL == "" {
		return domain.NormalizedProduct{}, false
	}

	p := domain.NormalizedProduct{
		ID:           code,
		Source:       SourceMarketplace,
		Name:         name,
		ImageURL:     bestMarketplaceImage(item),
		AffiliateURL: firstNonEmpty(item.AffiliateURL, itemURL),
		OriginalURL:  itemURL,
	}
	if item.ItemPrice > 0 {
		price := item.ItemPrice
		p.Price = &price
	}
	if item.ReviewCount > 0 && item.ReviewAverage > 0 {
		rating := item.ReviewAverage
		p.Rating = &rating
	}
	return p, true
}

// bestMarketplaceImage prefiere la variante mediana y pide un tamaño mayor al default de 128px.
func bestMarketplaceImage(item marketplaceItem) string {
	var raw string
	for _, img := range item.MediumImageURLs {
		if raw = strings.TrimSpace(img.ImageURL); raw != "" {
			break
		}
	}
	if raw == "" {
		for _, img := range item.SmallImageURLs {
			if raw = strings.TrimSpace(img.ImageURL); raw != "" {
				break
			}
		}
	}
	if raw == "" {
		return ""
	}
	raw = strings.Replace(raw, "_ex=128x128", "_ex=300x300", 1)
	raw = strings.Replace(raw, "_ex=64x64", "_ex=300x300", 1)
	return upgradeHTTPS(raw)
}

type marketplaceResponse struct {
	Items []json.RawMessage `json:"Items"`
}

type marketplaceItem struct {
	ItemCode        string             `json:"itemCode"`
	ItemName        string             `json:"itemName"`
	ItemPrice       int                `json:"itemPrice"`
	ItemURL         string             `json:"itemUrl"`
	AffiliateURL    string             `json:"affiliateUrl"`
	MediumImageURLs []marketplaceImage `json:"mediumImageUrls"`
	SmallImageURLs  []marketplaceImage `json:"smallImageUrls"`
	ReviewAverage   float64            `json:"reviewAverage"`
	ReviewCount     int                `json:"reviewCount"`
}

type marketplaceImage struct {
	ImageURL string `json:"imageUrl"`
}
