package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"encounter-recs/internal/domain"
	"encounter-recs/internal/metrics"
)

const clickWriteTimeout = 3 * time.Second

// ClickRepository persiste clicks. Solo se escribe, nunca se lee desde este servicio.
type ClickRepository interface {
	Create(ctx context.Context, entry domain.ClickLogEntry) error
}

// ClickLogger registra clicks sin bloquear al llamador. Los errores se loguean y se descartan.
type ClickLogger struct {
	repo   ClickRepository
	logger *zap.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

func NewClickLogger(repo ClickRepository, logger *zap.Logger) *ClickLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickLogger{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record despacha la escritura y retorna de inmediato con la entrada armada.
func (l *ClickLogger) Record(userID, productID, productSource string, category domain.Category, position int, affiliateURL string) domain.ClickLogEntry {
	if strings.TrimSpace(userID) == "" {
		userID = domain.AnonymousUserID
	}
	entry := domain.ClickLogEntry{
		ID:            uuid.NewString(),
		UserID:        userID,
		ProductID:     productID,
		ProductSource: productSource,
		Category:      category,
		Position:      position,
		AffiliateURL:  affiliateURL,
		Timestamp:     l.now(),
		Converted:     false,
	}
	if l.repo == nil {
		return entry
	}

	l.wg.Add(1)
	go func(e domain.ClickLogEntry) {
		defer l.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.ClickEvents.WithLabelValues("panic").Inc()
				l.logger.Error("click log panic", zap.Any("panic", r), zap.String("product_id", e.ProductID))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), clickWriteTimeout)
		defer cancel()
		if err := l.repo.Create(ctx, e); err != nil {
			metrics.ClickEvents.WithLabelValues("error").Inc()
			l.logger.Warn("click log failed",
				zap.String("user_id", e.UserID),
				zap.String("product_id", e.ProductID),
				zap.String("source", e.ProductSource),
				zap.Error(err),
			)
			return
		}
		metrics.ClickEvents.WithLabelValues("stored").Inc()
	}(entry)

	return entry
}

// Wait bloquea hasta que terminen las escrituras pendientes. Se usa al apagar el servidor.
func (l *ClickLogger) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
