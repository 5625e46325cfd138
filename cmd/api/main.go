package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"encounter-recs/internal/config"
	"encounter-recs/internal/db"
	apihttp "encounter-recs/internal/http"
	"encounter-recs/internal/llm"
	"encounter-recs/internal/repository"
	"encounter-recs/internal/service"
	"encounter-recs/internal/sources"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("db schema", zap.Error(err))
	}

	traitRepo := repository.NewPgTraitRepository(pool)
	snapshotRepo := repository.NewPgSnapshotRepository(pool)
	clickRepo := repository.NewPgClickRepository(pool)

	redisClient := connectRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	cacheStore, err := buildCacheStore(cfg, pool, redisClient, logger)
	if err != nil {
		logger.Fatal("cache store", zap.Error(err))
	}
	sharedCache := service.NewSharedCache(cacheStore, cfg.CacheTTL(), logger)
	logger.Info("shared cache ready", zap.String("backend", sharedCache.Backend()))

	opts := sources.ClientOptions{
		Timeout: cfg.UpstreamTimeout(),
		RPS:     cfg.UpstreamRPS,
	}
	registry := sources.NewDefaultRegistry(
		sources.NewMarketplaceSource(sources.MarketplaceConfig{
			BaseURL:     cfg.MarketplaceBaseURL,
			AppID:       cfg.MarketplaceAppID,
			AffiliateID: cfg.MarketplaceAffiliateID,
		}, opts, logger),
		sources.NewBookSource(sources.BookConfig{
			BaseURL:           cfg.BooksBaseURL,
			APIKey:            cfg.BooksAPIKey,
			AffiliateTemplate: cfg.BooksAffiliateTemplate,
		}, opts, logger),
		sources.NewMovieSource(sources.MovieConfig{
			BaseURL:      cfg.MoviesBaseURL,
			ImageBaseURL: cfg.MoviesImageBaseURL,
			APIKey:       cfg.MoviesAPIKey,
		}, opts, logger),
	)

	llmClient := llm.NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger)
	planner := service.NewIntentPlanner(llmClient, logger)
	aggregator := service.NewAggregator(planner, sharedCache, registry, service.NewPersonalizationRanker(), logger)
	recSvc := service.NewRecommendationService(logger, traitRepo, snapshotRepo, aggregator, cfg.SnapshotTTL()).
		WithGenerationLimiter(buildGenerationLimiter(cfg, redisClient))
	clickLogger := service.NewClickLogger(clickRepo, logger)

	jwtSvc := service.NewJWTService(cfg.JWTSecret, 0)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	var debugHandler *apihttp.DebugHandler
	if cfg.DebugEndpoints {
		logger.Warn("debug endpoints enabled")
		debugHandler = apihttp.NewDebugHandler(logger, sharedCache)
	}
	recHandler := apihttp.NewRecommendationHandler(logger, recSvc, clickLogger)
	router := apihttp.NewRouter(logger, jwtSvc, recHandler, debugHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	if err := clickLogger.Wait(shutdownCtx); err != nil {
		logger.Warn("pending click writes dropped", zap.Error(err))
	}
}
