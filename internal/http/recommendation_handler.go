package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"encounter-recs/internal/domain"
	"encounter-recs/internal/service"
)

// RecommendationHandler atiende las rutas de recomendaciones y clicks.
type RecommendationHandler struct {
	logger *zap.Logger
	recs   *service.RecommendationService
	clicks *service.ClickLogger
}

func NewRecommendationHandler(logger *zap.Logger, recs *service.RecommendationService, clicks *service.ClickLogger) *RecommendationHandler {
	return &RecommendationHandler{
		logger: logger,
		recs:   recs,
		clicks: clicks,
	}
}

// GetRecommendations maneja GET /recommendations/:category.
func (h *RecommendationHandler) GetRecommendations(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, status, err := h.recs.Recommend(c.Request.Context(), claims.UserID, c.Param("category"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCategory):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
		case errors.Is(err, service.ErrCategoryLocked):
			c.JSON(http.StatusForbidden, gin.H{
				"error":     "category locked",
				"remaining": status.Remaining,
				"required":  status.Required,
			})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many recommendation requests", "retryable": true})
		case errors.Is(err, service.ErrPlanningFailed):
			h.logger.Warn("recommendation planning failed", zap.String("user_id", claims.UserID), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not plan recommendations", "retryable": true})
		default:
			h.logger.Error("recommendation failed", zap.String("user_id", claims.UserID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not build recommendations"})
		}
		return
	}

	items := result.Items
	if items == nil {
		items = []domain.RecommendedItem{}
	}
	c.JSON(http.StatusOK, gin.H{
		"category":            result.Category,
		"items":               items,
		"personality_context": result.PersonalityContext,
		"traits_used_count":   result.TraitsUsedCount,
		"generated_at":        result.GeneratedAt,
	})
}

// GetCached maneja GET /recommendations/:category/cached.
func (h *RecommendationHandler) GetCached(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	snapshot, expired, err := h.recs.LatestSnapshot(c.Request.Context(), claims.UserID, c.Param("category"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCategory) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
			return
		}
		h.logger.Error("load snapshot failed", zap.String("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load cached recommendations"})
		return
	}

	var cached any
	if snapshot != nil {
		cached = gin.H{
			"recommendations":     snapshot.Recommendations,
			"personality_context": snapshot.PersonalityContext,
			"traits_used_count":   snapshot.TraitsUsedCount,
			"generated_at":        snapshot.GeneratedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"cached": cached, "is_expired": expired})
}

// GetHistory maneja GET /recommendations/:category/history?limit=.
func (h *RecommendationHandler) GetHistory(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	history, err := h.recs.History(c.Request.Context(), claims.UserID, c.Param("category"), limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCategory) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
			return
		}
		h.logger.Error("load history failed", zap.String("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// GetUnlockStatus maneja GET /unlock-status.
func (h *RecommendationHandler) GetUnlockStatus(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	statuses, err := h.recs.UnlockStatus(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("unlock status failed", zap.String("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load unlock status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": statuses})
}

// TrackClick maneja POST /recommendations/click. Siempre responde con la url de destino;
// el registro del click no bloquea ni puede fallar la respuesta.
func (h *RecommendationHandler) TrackClick(c *gin.Context) {
	var req struct {
		ProductID     string `json:"product_id" binding:"required"`
		ProductSource string `json:"product_source" binding:"required"`
		AffiliateURL  string `json:"affiliate_url" binding:"required"`
		Category      string `json:"category"`
		Position      int    `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid click request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if !isHTTPURL(req.AffiliateURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid affiliate url"})
		return
	}

	userID := domain.AnonymousUserID
	if claims, ok := GetAuthClaims(c); ok {
		userID = claims.UserID
	}
	category := domain.Category(strings.ToLower(strings.TrimSpace(req.Category)))

	if h.clicks != nil {
		h.clicks.Record(userID, req.ProductID, req.ProductSource, category, req.Position, req.AffiliateURL)
	}
	c.JSON(http.StatusOK, gin.H{"redirect_url": req.AffiliateURL})
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
