package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"encounter-recs/internal/domain"
	"encounter-recs/internal/metrics"
	"encounter-recs/internal/repository"
)

var (
	ErrInvalidCategory = errors.New("invalid category")
	ErrCategoryLocked  = errors.New("category locked")
	ErrRateLimited     = errors.New("generation rate limited")
)

const snapshotWriteTimeout = 3 * time.Second

// Recommender es lo que el servicio necesita del agregador.
type Recommender interface {
	Recommend(ctx context.Context, userID string, category domain.Category, traits []domain.Trait) (domain.RecommendationResult, error)
}

// RecommendationService es la fachada que usan los handlers: valida la categoria,
// aplica la puerta de desbloqueo y materializa el snapshot por usuario.
type RecommendationService struct {
	logger      *zap.Logger
	traits      repository.TraitRepository
	snapshots   repository.SnapshotRepository
	recommender Recommender
	limiter     GenerationLimiter
	snapshotTTL time.Duration
	now         func() time.Time
}

func NewRecommendationService(logger *zap.Logger, traits repository.TraitRepository, snapshots repository.SnapshotRepository, recommender Recommender, snapshotTTL time.Duration) *RecommendationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if snapshotTTL <= 0 {
		snapshotTTL = 24 * time.Hour
	}
	return &RecommendationService{
		logger:      logger,
		traits:      traits,
		snapshots:   snapshots,
		recommender: recommender,
		snapshotTTL: snapshotTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithGenerationLimiter acota las generaciones por usuario. Sin limitador no hay tope.
func (s *RecommendationService) WithGenerationLimiter(limiter GenerationLimiter) *RecommendationService {
	s.limiter = limiter
	return s
}

// Recommend devuelve la recomendacion y el estado de desbloqueo. Si la categoria esta
// bloqueada devuelve ErrCategoryLocked junto con el estado para informar lo que falta.
func (s *RecommendationService) Recommend(ctx context.Context, userID, rawCategory string) (domain.RecommendationResult, domain.UnlockStatus, error) {
	category, ok := domain.ParseCategory(rawCategory)
	if !ok {
		return domain.RecommendationResult{}, domain.UnlockStatus{}, ErrInvalidCategory
	}

	start := time.Now()
	traits, err := s.traits.FindByUserID(ctx, userID)
	if err != nil {
		return domain.RecommendationResult{}, domain.UnlockStatus{}, fmt.Errorf("load traits: %w", err)
	}

	status := IsUnlocked(category, len(traits))
	if !status.Unlocked {
		metrics.RecommendDuration.WithLabelValues(category.String(), "locked").Observe(time.Since(start).Seconds())
		return domain.RecommendationResult{}, status, ErrCategoryLocked
	}
	if s.limiter != nil && !s.limiter.Allow(ctx, userID) {
		metrics.RecommendDuration.WithLabelValues(category.String(), "limited").Observe(time.Since(start).Seconds())
		return domain.RecommendationResult{}, status, ErrRateLimited
	}

	result, err := s.recommender.Recommend(ctx, userID, category, traits)
	if err != nil {
		metrics.RecommendDuration.WithLabelValues(category.String(), "error").Observe(time.Since(start).Seconds())
		return domain.RecommendationResult{}, status, err
	}
	metrics.RecommendDuration.WithLabelValues(category.String(), "ok").Observe(time.Since(start).Seconds())

	s.saveSnapshot(ctx, userID, result)
	return result, status, nil
}

// saveSnapshot es best-effort: un fallo se loguea y la respuesta sigue.
func (s *RecommendationService) saveSnapshot(ctx context.Context, userID string, result domain.RecommendationResult) {
	if s.snapshots == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotWriteTimeout)
	defer cancel()

	snapshot := domain.RecommendationSnapshot{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Category:           result.Category,
		Recommendations:    result.Items,
		PersonalityContext: result.PersonalityContext,
		TraitsUsedCount:    result.TraitsUsedCount,
		GeneratedAt:        result.GeneratedAt,
		ExpiresAt:          result.GeneratedAt.Add(s.snapshotTTL),
	}
	if err := s.snapshots.Save(writeCtx, snapshot); err != nil {
		s.logger.Warn("snapshot save failed",
			zap.String("user_id", userID),
			zap.String("category", result.Category.String()),
			zap.Error(err),
		)
	}
}

// LatestSnapshot devuelve el ultimo snapshot o nil. Sin snapshot se informa como vencido.
func (s *RecommendationService) LatestSnapshot(ctx context.Context, userID, rawCategory string) (*domain.RecommendationSnapshot, bool, error) {
	category, ok := domain.ParseCategory(rawCategory)
	if !ok {
		return nil, false, ErrInvalidCategory
	}
	snapshot, found, err := s.snapshots.Latest(ctx, userID, category)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, true, nil
	}
	return &snapshot, s.now().After(snapshot.ExpiresAt), nil
}

// History devuelve snapshots previos, el mas nuevo primero.
func (s *RecommendationService) History(ctx context.Context, userID, rawCategory string, limit int) ([]domain.RecommendationSnapshot, error) {
	category, ok := domain.ParseCategory(rawCategory)
	if !ok {
		return nil, ErrInvalidCategory
	}
	if limit <= 0 || limit > repository.MaxHistoryLimit {
		limit = repository.MaxHistoryLimit
	}
	return s.snapshots.History(ctx, userID, category, limit)
}

// UnlockStatus evalua la puerta para todas las categorias. Se recalcula en cada llamada.
func (s *RecommendationService) UnlockStatus(ctx context.Context, userID string) ([]domain.UnlockStatus, error) {
	n, err := s.traits.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count traits: %w", err)
	}
	return UnlockAll(n), nil
}
