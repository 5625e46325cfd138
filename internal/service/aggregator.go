package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"encounter-recs/internal/domain"
	"encounter-recs/internal/sources"
)

const (
	defaultMaxDisplayItems = 12
	cacheWriteTimeout      = 2 * time.Second
)

// Planner genera el plan de busqueda para una categoria.
type Planner interface {
	Plan(ctx context.Context, category domain.Category, traits []domain.Trait) (domain.IntentPlan, error)
}

// Aggregator orquesta planner, cache compartido, fuentes y ranker para un request.
type Aggregator struct {
	planner  Planner
	cache    *SharedCache
	registry *sources.Registry
	ranker   *PersonalizationRanker
	logger   *zap.Logger
	maxItems int
	now      func() time.Time
}

func NewAggregator(planner Planner, cache *SharedCache, registry *sources.Registry, ranker *PersonalizationRanker, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ranker == nil {
		ranker = NewPersonalizationRanker()
	}
	return &Aggregator{
		planner:  planner,
		cache:    cache,
		registry: registry,
		ranker:   ranker,
		logger:   logger,
		maxItems: defaultMaxDisplayItems,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Recommend arma la recomendacion personalizada. Solo falla si el planner falla;
// sin datos de ningun proveedor devuelve una lista vacia.
func (a *Aggregator) Recommend(ctx context.Context, userID string, category domain.Category, traits []domain.Trait) (domain.RecommendationResult, error) {
	plan, err := a.planner.Plan(ctx, category, traits)
	if err != nil {
		return domain.RecommendationResult{}, err
	}

	intents := distinctIntents(plan.SearchIntents)
	perKeyword := make([][]domain.ProductHit, len(intents))

	g, gctx := errgroup.WithContext(ctx)
	for i, intent := range intents {
		i, intent := i, intent
		g.Go(func() error {
			perKeyword[i] = a.lookup(gctx, category, intent)
			return nil
		})
	}
	_ = g.Wait()

	merged := mergeHits(perKeyword, a.maxItems)
	items := a.ranker.Rank(merged, intents, traits)

	a.logger.Info("recommendation built",
		zap.String("user_id", userID),
		zap.String("category", category.String()),
		zap.Int("keywords", len(intents)),
		zap.Int("items", len(items)),
	)

	return domain.RecommendationResult{
		Category:           category,
		Items:              items,
		PersonalityContext: plan.PersonalityContext,
		TraitsUsedCount:    plan.TraitsUsed,
		GeneratedAt:        a.now(),
	}, nil
}

// lookup resuelve una keyword contra el cache y, en miss, contra las fuentes de la categoria.
func (a *Aggregator) lookup(ctx context.Context, category domain.Category, intent domain.SearchIntent) []domain.ProductHit {
	if products, ok := a.cache.Get(ctx, category, intent.Keyword); ok {
		return toHits(products, intent.Keyword)
	}

	products := a.fanOut(ctx, category, intent)

	// La escritura sigue aunque el request se cancele.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	if err := a.cache.Put(writeCtx, category, intent.Keyword, products); err != nil {
		a.logger.Warn("shared cache write failed",
			zap.String("category", category.String()),
			zap.String("keyword", intent.Keyword),
			zap.Error(err),
		)
	}

	// Sin imagenes la ronda se considera incompleta y no se muestra.
	if domain.CountImages(products) == 0 {
		return nil
	}
	return toHits(products, intent.Keyword)
}

func (a *Aggregator) fanOut(ctx context.Context, category domain.Category, intent domain.SearchIntent) []domain.NormalizedProduct {
	srcs := a.registry.For(category)
	results := make([][]domain.NormalizedProduct, len(srcs))

	var g errgroup.Group
	for i, src := range srcs {
		i, src := i, src
		g.Go(func() error {
			results[i] = src.Search(ctx, intent.Keyword, intent.CategoryHint)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	merged := make([]domain.NormalizedProduct, 0)
	for _, batch := range results {
		for _, p := range batch {
			key := p.DedupKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, p)
		}
	}
	return merged
}

// distinctIntents conserva la primera intencion por keyword normalizada.
func distinctIntents(intents []domain.SearchIntent) []domain.SearchIntent {
	seen := make(map[string]bool, len(intents))
	out := make([]domain.SearchIntent, 0, len(intents))
	for _, in := range intents {
		key := NormalizeKeyword(in.Keyword)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, in)
	}
	return out
}

// toHits asigna a cada producto su posicion dentro de su propio proveedor. fanOut conserva
// el orden de cada fuente, asi que el rank se recupera igual desde el cache.
func toHits(products []domain.NormalizedProduct, keyword string) []domain.ProductHit {
	hits := make([]domain.ProductHit, 0, len(products))
	perSource := make(map[string]int)
	for _, p := range products {
		hits = append(hits, domain.ProductHit{Product: p, Keyword: keyword, Rank: perSource[p.Source]})
		perSource[p.Source]++
	}
	return hits
}

// mergeHits intercala los resultados por posicion para que ninguna keyword acapare
// el cupo, deduplica por (source, id) y corta en max.
func mergeHits(perKeyword [][]domain.ProductHit, max int) []domain.ProductHit {
	seen := make(map[string]bool)
	out := make([]domain.ProductHit, 0, max)
	for pos := 0; ; pos++ {
		advanced := false
		for _, hits := range perKeyword {
			if pos >= len(hits) {
				continue
			}
			advanced = true
			key := hits[pos].Product.DedupKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, hits[pos])
			if len(out) == max {
				return out
			}
		}
		if !advanced {
			return out
		}
	}
}
