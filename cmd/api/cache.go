package main

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"encounter-recs/internal/config"
	"encounter-recs/internal/repository"
	"encounter-recs/internal/service"
)

// connectRedis devuelve nil si Redis no esta configurado o no responde.
func connectRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		logger.Warn("redis not configured")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		logger.Warn("redis ping failed", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

// buildCacheStore elige el backend del cache compartido. Sin Redis se cae a memoria.
func buildCacheStore(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *zap.Logger) (service.ProductCacheStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.CacheBackend)) {
	case "memory":
		return service.NewMemoryProductCacheStore(cfg.CacheMemorySize)
	case "postgres":
		return repository.NewPgProductCacheStore(pool), nil
	}
	if redisClient == nil {
		logger.Warn("redis unavailable, using memory cache")
		return service.NewMemoryProductCacheStore(cfg.CacheMemorySize)
	}
	return service.NewRedisProductCacheStore(redisClient), nil
}

func buildGenerationLimiter(cfg *config.Config, redisClient *redis.Client) service.GenerationLimiter {
	if cfg.GenerationLimitPerHour <= 0 {
		return nil
	}
	if redisClient != nil {
		return service.NewRedisGenerationLimiter(redisClient, time.Hour, cfg.GenerationLimitPerHour)
	}
	return service.NewMemoryGenerationLimiter(time.Hour, cfg.GenerationLimitPerHour)
}
