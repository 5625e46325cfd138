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

// movieGenres traduce pistas del planner a ids de genero del catalogo de peliculas.
var movieGenres = map[string]int{
	"action":      28,
	"comedy":      35,
	"drama":       18,
	"sci-fi":      878,
	"animation":   16,
	"documentary": 99,
	"romance":     10749,
	"thriller":    53,
	"fantasy":     14,
	"horror":      27,
}

// MovieConfig agrupa la configuracion del catalogo de peliculas.
type MovieConfig struct {
	BaseURL      string
	ImageBaseURL string
	APIKey       string
	TitleBaseURL string
}

// MovieSource busca titulos en la API de metadatos de peliculas.
type MovieSource struct {
	cfg    MovieConfig
	client *client
}

func NewMovieSource(cfg MovieConfig, opts ClientOptions, logger *zap.Logger) *MovieSource {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.ImageBaseURL = strings.TrimRight(cfg.ImageBaseURL, "/")
	if cfg.TitleBaseURL == "" {
		cfg.TitleBaseURL = "https://www.themoviedb.org/movie"
	}
	cfg.TitleBaseURL = strings.TrimRight(cfg.TitleBaseURL, "/")
	return &MovieSource{
		cfg:    cfg,
		client: newClient(SourceMovies, opts, logger),
	}
}

func (s *MovieSource) Name() string { return SourceMovies }

func (s *MovieSource) Search(ctx context.Context, keyword, hint string) []domain.NormalizedProduct {
	q := url.Values{}
	q.Set("query", keyword)
	q.Set("include_adult", "false")
	q.Set("page", "1")
	if s.cfg.APIKey != "" {
		q.Set("api_key", s.cfg.APIKey)
	}

	var resp movieResponse
	if err := s.client.getJSON(ctx, s.cfg.BaseURL+"/search/movie", q, &resp); err != nil {
		s.client.absorb(keyword, err)
		return []domain.NormalizedProduct{}
	}

	movies := make([]movieResult, 0, len(resp.Results))
	for _, raw := range resp.Results {
		var m movieResult
		if decodeItem(raw, &m) {
			movies = append(movies, m)
		}
	}
	movies = filterByGenre(movies, hint)

	out := make([]domain.NormalizedProduct, 0, len(movies))
	for _, m := range movies {
		if len(out) == defaultHits {
			break
		}
		if p, ok := s.normalize(m); ok {
			out = append(out, p)
		}
	}
	return out
}

// filterByGenre filtra por la pista; si el filtro deja la lista vacia se ignora.
func filterByGenre(movies []movieResult, hint string) []movieResult {
	genre, ok := movieGenres[strings.ToLower(strings.TrimSpace(hint))]
	if !ok {
		return movies
	}
	filtered := make([]movieResult, 0, len(movies))
	for _, m := range movies {
		for _, g := range m.GenreIDs {
			if g == genre {
				filtered = append(filtered, m)
				break
			}
		}
	}
	if len(filtered) == 0 {
		return movies
	}
	return filtered
}

func (s *MovieSource) normalize(m movieResult) (domain.NormalizedProduct, bool) {
	title := strings.TrimSpace(firstNonEmpty(m.Title, m.OriginalTitle))
	if m.ID <= 0 || title == "" {
		return domain.NormalizedProduct{}, false
	}

	id := strconv.FormatInt(m.ID, 10)
	link := s.cfg.TitleBaseURL + "/" + id
	p := domain.NormalizedProduct{
		ID:           id,
		Source:       SourceMovies,
		Name:         title,
		AffiliateURL: link,
		OriginalURL:  link,
	}
	if path := firstNonEmpty(m.PosterPath, m.BackdropPath); path != "" && s.cfg.ImageBaseURL != "" {
		p.ImageURL = s.cfg.ImageBaseURL + "/" + strings.TrimLeft(path, "/")
	}
	// vote_average viene en escala 0-10.
	if m.VoteCount > 0 && m.VoteAverage > 0 {
		rating := math.Round(m.VoteAverage*5) / 10
		p.Rating = &rating
	}
	return p, true
}

type movieResponse struct {
	Results []json.RawMessage `json:"results"`
}

type movieResult struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	PosterPath    string  `json:"poster_path"`
	BackdropPath  string  `json:"backdrop_path"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int     `json:"vote_count"`
	GenreIDs      []int   `json:"genre_ids"`
}
