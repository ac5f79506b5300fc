// Package httpapi exposes the feed and its fetch controls over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/communitysurf/internal/cache"
	"github.com/ppiankov/communitysurf/internal/clock"
	"github.com/ppiankov/communitysurf/internal/feed"
	"github.com/ppiankov/communitysurf/internal/fetch"
	"github.com/ppiankov/communitysurf/internal/source"
)

type Handler struct {
	Feed  *feed.Service
	Fetch *fetch.Coordinator
	Cache *cache.Cache[source.Batch] // optional
	Clock clock.Clock
	Log   *slog.Logger
}

func NewHandler(svc *feed.Service, coord *fetch.Coordinator, rc *cache.Cache[source.Batch], log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		Feed:  svc,
		Fetch: coord,
		Cache: rc,
		Clock: clock.Real{},
		Log:   log,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Router registers every route on a fresh engine.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLog())

	r.GET("/health", h.HealthCheckHandler)

	api := r.Group("/api")
	api.GET("/feed", h.HandleGetFeed)
	api.GET("/catalog", h.HandleGetCatalog)
	api.GET("/status", h.HandleGetStatus)
	api.POST("/refresh", h.HandleRefresh)
	api.POST("/completed/:key", h.HandleMarkCompleted)
	api.DELETE("/completed/:key", h.HandleUnmarkCompleted)
	api.PUT("/sort", h.HandleSetSort)
	api.PUT("/filters", h.HandleSetFilters)
	api.POST("/visibility", h.HandleSetVisibility)
	api.DELETE("/cache", h.HandleClearCache)

	return r
}

func (h *Handler) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.Log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
