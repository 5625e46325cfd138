package sources

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"encounter-recs/internal/domain"
)

// bookSubjects traduce pistas de books y skills a subjects del catalogo de libros.
var bookSubjects = map[string]string{
	"novel":       "fiction",
	"business":    "business",
	"self-help":   "self-help",
	"science":     "science",
	"essay":       "essays",
	"manga":       "comics",
	"art":         "art",
	"history":     "history",
	"programming": "computers",
	"language":    "foreign language study",
	"design":      "design",
	"music":       "music",
	"sports":      "sports",
	"cooking":     "cooking",
	"writing":     "language arts",
}

// BookConfig agrupa la configuracion del catalogo de metadatos de libros.
// AffiliateTemplate puede contener {query}, que se reemplaza por ISBN o titulo.
type BookConfig struct {
	BaseURL           string
	APIKey            string
	AffiliateTemplate string
}

// BookSource busca volumenes en el catalogo de metadatos de libros.
type BookSource struct {
	cfg    BookConfig
	client *client
}

func NewBookSource(cfg BookConfig, opts ClientOptions, logger *zap.Logger) *BookSource {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &BookSource{
		cfg:    cfg,
		client: newClient(SourceBooks, opts, logger),
	}
}

func (s *BookSource) Name() string { return SourceBooks }

func (s *BookSource) Search(ctx context.Context, keyword, hint string) []domain.NormalizedProduct {
	query := keyword
	if subject, ok := bookSubjects[strings.ToLower(strings.TrimSpace(hint))]; ok {
		query += " subject:" + subject
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("maxResults", strconv.Itoa(defaultHits))
	q.Set("printType", "books")
	if s.cfg.APIKey != "" {
		q.Set("key", s.cfg.APIKey)
	}

	var resp bookResponse
	if err := s.client.getJSON(ctx, s.cfg.BaseURL+"/volumes", q, &resp); err != nil {
		s.client.absorb(keyword, err)
		return []domain.NormalizedProduct{}
	}

	out := make([]domain.NormalizedProduct, 0, len(resp.Items))
	for _, raw := range resp.Items {
		var vol bookVolume
		if !decodeItem(raw, &vol) {
			continue
		}
		if p, ok := s.normalize(vol); ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *BookSource) normalize(vol bookVolume) (domain.NormalizedProduct, bool) {
	id := strings.TrimSpace(vol.ID)
	title := strings.TrimSpace(vol.VolumeInfo.Title)
	link := upgradeHTTPS(firstNonEmpty(vol.VolumeInfo.CanonicalVolumeLink, vol.VolumeInfo.InfoLink))
	if id == "" || title == "" || link == "" {
		return domain.NormalizedProduct{}, false
	}

	p := domain.NormalizedProduct{
		ID:          id,
		Source:      SourceBooks,
		Name:        title,
		ImageURL:    bestBookImage(vol.VolumeInfo.ImageLinks),
		OriginalURL: link,
	}
	p.AffiliateURL = s.affiliateURL(vol, link)

	if lp := vol.SaleInfo.ListPrice; lp != nil && lp.Amount > 0 {
		price := int(math.Round(lp.Amount))
		p.Price = &price
	}
	if vol.VolumeInfo.RatingsCount > 0 && vol.VolumeInfo.AverageRating > 0 {
		rating := vol.VolumeInfo.AverageRating
		p.Rating = &rating
	}
	return p, true
}

func (s *BookSource) affiliateURL(vol bookVolume, fallback string) string {
	if s.cfg.AffiliateTemplate == "" {
		return upgradeHTTPS(firstNonEmpty(vol.SaleInfo.BuyLink, fallback))
	}
	query := firstNonEmpty(isbnOf(vol.VolumeInfo.IndustryIdentifiers), vol.VolumeInfo.Title)
	return strings.ReplaceAll(s.cfg.AffiliateTemplate, "{query}", url.QueryEscape(query))
}

// bestBookImage elige la variante mas grande disponible.
func bestBookImage(links bookImageLinks) string {
	raw := firstNonEmpty(links.ExtraLarge, links.Large, links.Medium, links.Small, links.Thumbnail, links.SmallThumbnail)
	if raw == "" {
		return ""
	}
	raw = strings.Replace(raw, "&edge=curl", "", 1)
	return upgradeHTTPS(raw)
}

func isbnOf(ids []bookIdentifier) string {
	var isbn10 string
	for _, id := range ids {
		switch id.Type {
		case "ISBN_13":
			return id.Identifier
		case "ISBN_10":
			isbn10 = id.Identifier
		}
	}
	return isbn10
}

type bookResponse struct {
	Items []json.RawMessage `json:"items"`
}

type bookVolume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title               string           `json:"title"`
		InfoLink            string           `json:"infoLink"`
		CanonicalVolumeLink string           `json:"canonicalVolumeLink"`
		AverageRating       float64          `json:"averageRating"`
		RatingsCount        int              `json:"ratingsCount"`
		ImageLinks          bookImageLinks   `json:"imageLinks"`
		IndustryIdentifiers []bookIdentifier `json:"industryIdentifiers"`
	} `json:"volumeInfo"`
	SaleInfo struct {
		BuyLink   string `json:"buyLink"`
		ListPrice *struct {
			Amount       float64 `json:"amount"`
			CurrencyCode string  `json:"currencyCode"`
		} `json:"listPrice"`
	} `json:"saleInfo"`
}

type bookImageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
	Small          string `json:"small"`
	Medium         string `json:"medium"`
	Large          string `json:"large"`
	ExtraLarge     string `json:"extraLarge"`
}

type bookIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}
