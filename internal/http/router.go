package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"encounter-recs/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
// debugH es nil cuando los endpoints de debug estan deshabilitados.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	recH *RecommendationHandler,
	debugH *DebugHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := JWTAuthMiddleware(jwtSvc)

	// El click admite usuarios anonimos.
	r.POST("/recommendations/click", OptionalJWTMiddleware(jwtSvc), recH.TrackClick)

	recs := r.Group("/recommendations/:category", auth)
	recs.GET("", recH.GetRecommendations)
	recs.GET("/cached", recH.GetCached)
	recs.GET("/history", recH.GetHistory)

	r.GET("/unlock-status", auth, recH.GetUnlockStatus)

	if debugH != nil {
		debug := r.Group("/debug")
		debug.GET("/cache/:category", debugH.CacheStatus)
		debug.DELETE("/cache/:category", debugH.ClearCache)
	}

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
