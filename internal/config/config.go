package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"1"`
	LLMAPIKey   string `env:"LLM_API_KEY,required"`
	LLMBaseURL  string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel    string `env:"LLM_MODEL" envDefault:"gpt-5.1"`
	JWTSecret   string `env:"JWT_SECRET"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	CacheBackend     string `env:"CACHE_BACKEND" envDefault:"redis"`
	CacheTTLHours    int    `env:"CACHE_TTL_HOURS" envDefault:"24"`
	CacheMemorySize  int    `env:"CACHE_MEMORY_SIZE" envDefault:"2048"`
	SnapshotTTLHours int    `env:"SNAPSHOT_TTL_HOURS" envDefault:"24"`

	MarketplaceBaseURL     string `env:"MARKETPLACE_BASE_URL" envDefault:"https://app.rakuten.co.jp/services/api/IchibaItem/Search/20220601"`
	MarketplaceAppID       string `env:"MARKETPLACE_APP_ID"`
	MarketplaceAffiliateID string `env:"MARKETPLACE_AFFILIATE_ID"`
	BooksBaseURL           string `env:"BOOKS_BASE_URL" envDefault:"https://www.googleapis.com/books/v1"`
	BooksAPIKey            string `env:"BOOKS_API_KEY"`
	BooksAffiliateTemplate string `env:"BOOKS_AFFILIATE_TEMPLATE"`
	MoviesBaseURL          string `env:"MOVIES_BASE_URL" envDefault:"https://api.themoviedb.org/3"`
	MoviesImageBaseURL     string `env:"MOVIES_IMAGE_BASE_URL" envDefault:"https://image.tmdb.org/t/p/w500"`
	MoviesAPIKey           string `env:"MOVIES_API_KEY"`

	UpstreamTimeoutSeconds int     `env:"UPSTREAM_TIMEOUT_SECONDS" envDefault:"8"`
	UpstreamRPS            float64 `env:"UPSTREAM_RPS" envDefault:"1"`

	GenerationLimitPerHour int `env:"GENERATION_LIMIT_PER_HOUR" envDefault:"30"`

	DebugEndpoints bool `env:"DEBUG_ENDPOINTS" envDefault:"false"`
}

// CacheTTL devuelve el TTL del cache compartido.
func (c *Config) CacheTTL() time.Duration {
	if c.CacheTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// SnapshotTTL devuelve la vigencia de los snapshots por usuario.
func (c *Config) SnapshotTTL() time.Duration {
	if c.SnapshotTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.SnapshotTTLHours) * time.Hour
}

// UpstreamTimeout devuelve el timeout por llamada a un catalogo externo.
func (c *Config) UpstreamTimeout() time.Duration {
	if c.UpstreamTimeoutSeconds <= 0 {
		return 8 * time.Second
	}
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
