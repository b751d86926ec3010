// Package apiserver exposes the analysis service over REST.
package apiserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anatolykoptev/go_ytinsight/internal/engine/analysis"
)

const requestIDHeader = "X-Request-ID"

// Server holds the HTTP handlers.
type Server struct {
	svc *analysis.Service
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(svc *analysis.Service) *gin.Engine {
	registerEngineMetrics()
	s := &Server{svc: svc}

	r := gin.New()
	r.Use(
		requestID(),
		requestLogger(),
		metricsMiddleware(),
		gin.CustomRecovery(recoverJSON),
		cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:    []string{"Origin", "Content-Type", "Accept", requestIDHeader},
			ExposeHeaders:   []string{requestIDHeader},
			MaxAge:          12 * time.Hour,
		}),
	)

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/analyze", s.analyze)
		api.POST("/chat", s.chat)
		api.POST("/gemini", s.gemini)
		api.POST("/extract-frame", s.extractFrame)
		api.POST("/summarize-video", s.summarizeVideo)
		api.POST("/compare-analytics", s.compareAnalytics)
		api.POST("/youtube-channel", s.youtubeChannel)
		api.GET("/analyses", s.listAnalyses)
		api.GET("/analyses/:id", s.getAnalysis)
	}
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", c.GetString("request_id")),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}
		switch {
		case status >= http.StatusInternalServerError:
			slog.Error("http request", attrs...)
		case status >= http.StatusBadRequest:
			slog.Warn("http request", attrs...)
		default:
			slog.Info("http request", attrs...)
		}
	}
}

func recoverJSON(c *gin.Context, recovered any) {
	slog.Error("http: panic recovered", slog.Any("panic", recovered), slog.String("path", c.Request.URL.Path))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":  "Internal server error",
		"status": "error",
	})
}
