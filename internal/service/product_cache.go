package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"encounter-recs/internal/domain"
	"encounter-recs/internal/metrics"
)

const (
	maxNormalizedKeywordRunes = 64
	cacheScopeAll             = "all"
)

var ErrInvalidCacheScope = errors.New("invalid cache scope")

// SharedCache es el cache entre usuarios de productos normalizados, por (categoria, keyword).
// Solo guarda campos del proveedor; la personalizacion nunca pasa por aca.
type SharedCache struct {
	store  ProductCacheStore
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewSharedCache(store ProductCacheStore, ttl time.Duration, logger *zap.Logger) *SharedCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SharedCache{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeKeyword hace que variantes triviales de una keyword colisionen en la misma clave.
func NormalizeKeyword(keyword string) string {
	s := strings.Join(strings.Fields(strings.ToLower(keyword)), "_")
	if utf8.RuneCountInString(s) > maxNormalizedKeywordRunes {
		s = strings.TrimRight(string([]rune(s)[:maxNormalizedKeywordRunes]), "_")
	}
	return s
}

func cacheKey(category domain.Category, normalized string) string {
	return category.String() + ":" + normalized
}

func (c *SharedCache) Backend() string {
	return c.store.Backend()
}

// Get devuelve los productos cacheados o miss. Una entrada vencida, ilegible o sin
// ninguna imagen se trata como miss.
func (c *SharedCache) Get(ctx context.Context, category domain.Category, keyword string) ([]domain.NormalizedProduct, bool) {
	normalized := NormalizeKeyword(keyword)
	if normalized == "" {
		return nil, false
	}

	payload, ok, err := c.store.Load(ctx, cacheKey(category, normalized))
	if err != nil {
		c.logger.Warn("shared cache load failed",
			zap.String("category", category.String()),
			zap.String("keyword", normalized),
			zap.Error(err),
		)
		metrics.CacheLookups.WithLabelValues(category.String(), "error").Inc()
		return nil, false
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues(category.String(), "miss").Inc()
		return nil, false
	}

	entry, corrupt := decodeCacheEntry(payload)
	if corrupt {
		c.logger.Warn("shared cache entry corrupt, treating as miss",
			zap.String("category", category.String()),
			zap.String("keyword", normalized),
			zap.Int("products", len(entry.Products)),
		)
		metrics.CacheLookups.WithLabelValues(category.String(), "corrupt").Inc()
		return nil, false
	}
	if c.now().After(entry.ExpiresAt) {
		metrics.CacheLookups.WithLabelValues(category.String(), "expired").Inc()
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues(category.String(), "hit").Inc()
	return entry.Products, true
}

// Put sobrescribe la entrada. Un set vacio o sin imagenes no se guarda.
func (c *SharedCache) Put(ctx context.Context, category domain.Category, keyword string, products []domain.NormalizedProduct) error {
	normalized := NormalizeKeyword(keyword)
	if normalized == "" {
		return nil
	}
	if len(products) == 0 {
		c.logger.Info("shared cache write skipped: empty result",
			zap.String("category", category.String()),
			zap.String("keyword", normalized),
		)
		metrics.CacheWrites.WithLabelValues(category.String(), "skipped_empty").Inc()
		return nil
	}
	if domain.CountImages(products) == 0 {
		c.logger.Info("shared cache write skipped: no images",
			zap.String("category", category.String()),
			zap.String("keyword", normalized),
			zap.Int("products", len(products)),
		)
		metrics.CacheWrites.WithLabelValues(category.String(), "skipped_imageless").Inc()
		return nil
	}

	now := c.now()
	entry := domain.CacheEntry{
		Category:  category,
		Keyword:   normalized,
		Products:  products,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		metrics.CacheWrites.WithLabelValues(category.String(), "error").Inc()
		return err
	}
	if err := c.store.Save(ctx, cacheKey(category, normalized), payload, c.ttl); err != nil {
		metrics.CacheWrites.WithLabelValues(category.String(), "error").Inc()
		return err
	}
	metrics.CacheWrites.WithLabelValues(category.String(), "stored").Inc()
	return nil
}

// Status lista las entradas de una categoria para introspeccion.
func (c *SharedCache) Status(ctx context.Context, category domain.Category) (domain.CacheStatus, error) {
	raw, err := c.store.Scan(ctx, category.String()+":")
	if err != nil {
		return domain.CacheStatus{}, err
	}

	now := c.now()
	entries := make([]domain.CacheEntryStatus, 0, len(raw))
	for key, payload := range raw {
		entry, corrupt := decodeCacheEntry(payload)
		keyword := entry.Keyword
		if keyword == "" {
			keyword = strings.TrimPrefix(key, category.String()+":")
		}
		entries = append(entries, domain.CacheEntryStatus{
			Keyword:      keyword,
			ProductCount: len(entry.Products),
			ImageCount:   domain.CountImages(entry.Products),
			CachedAt:     entry.CachedAt,
			ExpiresAt:    entry.ExpiresAt,
			Expired:      !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt),
			Corrupt:      corrupt,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Keyword < entries[j].Keyword })

	return domain.CacheStatus{
		Category: category,
		Backend:  c.store.Backend(),
		Entries:  entries,
	}, nil
}

// Clear borra las entradas de una categoria, o todas con scope "all".
func (c *SharedCache) Clear(ctx context.Context, scope string) (int, error) {
	scope = strings.ToLower(strings.TrimSpace(scope))
	prefix := ""
	if scope != cacheScopeAll {
		category, ok := domain.ParseCategory(scope)
		if !ok {
			return 0, ErrInvalidCacheScope
		}
		prefix = category.String() + ":"
	}
	n, err := c.store.Delete(ctx, prefix)
	if err != nil {
		return 0, err
	}
	c.logger.Info("shared cache cleared", zap.String("scope", scope), zap.Int("deleted", n))
	return n, nil
}

// decodeCacheEntry marca como corrupta una entrada ilegible o sin ninguna imagen.
func decodeCacheEntry(payload []byte) (domain.CacheEntry, bool) {
	var entry domain.CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return domain.CacheEntry{}, true
	}
	return entry, domain.CountImages(entry.Products) == 0
}
