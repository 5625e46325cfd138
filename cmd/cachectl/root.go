package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"encounter-recs/internal/repository"
	"encounter-recs/internal/service"
)

// cliConfig es el subconjunto de variables que necesita cachectl.
type cliConfig struct {
	DatabaseURL   string `env:"DATABASE_URL"`
	JWTSecret     string `env:"JWT_SECRET"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	CacheBackend  string `env:"CACHE_BACKEND" envDefault:"redis"`
	CacheTTLHours int    `env:"CACHE_TTL_HOURS" envDefault:"24"`
}

var (
	verbose  bool
	backend  string
	cfg      cliConfig
	logger   = zap.NewNop()
	timeout  = 30 * time.Second
	errNoDSN = errors.New("DATABASE_URL is required for the postgres backend")
)

var rootCmd = &cobra.Command{
	Use:   "cachectl",
	Short: "Inspect and maintain the shared product cache",
	Long: `cachectl opera sobre el cache compartido de productos sin pasar por la API.

Ejemplos:
  cachectl status books          # entradas vigentes para libros
  cachectl clear all             # vacia el cache de todas las categorias
  cachectl purge                 # borra filas vencidas (backend postgres)
  cachectl token 42              # emite un access token de desarrollo`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "cache backend override (redis|postgres)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "timeout for cache operations")
}

func initConfig() error {
	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if backend != "" {
		cfg.CacheBackend = backend
	}
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
	}
	return nil
}

func cacheTTL() time.Duration {
	if cfg.CacheTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(cfg.CacheTTLHours) * time.Hour
}

// openCache abre el backend configurado. A diferencia de la API no hay fallback:
// un cache en memoria no tiene sentido fuera del proceso del servidor.
func openCache(ctx context.Context) (*service.SharedCache, func(), error) {
	store, closeFn, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return service.NewSharedCache(store, cacheTTL(), logger), closeFn, nil
}

func openStore(ctx context.Context) (service.ProductCacheStore, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.CacheBackend)) {
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, nil, errors.New("REDIS_ADDR is required for the redis backend")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return service.NewRedisProductCacheStore(client), func() { _ = client.Close() }, nil
	case "postgres":
		store, pool, err := openPgStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend %q", cfg.CacheBackend)
	}
}

func openPgStore(ctx context.Context) (*repository.PgProductCacheStore, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, errNoDSN
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	return repository.NewPgProductCacheStore(pool), pool, nil
}
