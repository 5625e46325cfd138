package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"encounter-recs/internal/domain"
	"encounter-recs/internal/service"
)

// DebugHandler expone introspeccion del cache compartido. Solo se monta con DEBUG_ENDPOINTS.
type DebugHandler struct {
	logger *zap.Logger
	cache  *service.SharedCache
}

func NewDebugHandler(logger *zap.Logger, cache *service.SharedCache) *DebugHandler {
	return &DebugHandler{logger: logger, cache: cache}
}

// CacheStatus maneja GET /debug/cache/:category.
func (h *DebugHandler) CacheStatus(c *gin.Context) {
	category, ok := domain.ParseCategory(c.Param("category"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
		return
	}
	status, err := h.cache.Status(c.Request.Context(), category)
	if err != nil {
		h.logger.Error("cache status failed", zap.String("category", category.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read cache"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// ClearCache maneja DELETE /debug/cache/:category, aceptando "all".
func (h *DebugHandler) ClearCache(c *gin.Context) {
	scope := c.Param("category")
	n, err := h.cache.Clear(c.Request.Context(), scope)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCacheScope) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
			return
		}
		h.logger.Error("cache clear failed", zap.String("scope", scope), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not clear cache"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n, "scope": scope})
}
