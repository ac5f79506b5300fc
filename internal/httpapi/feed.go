package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/communitysurf/internal/filter"
	"github.com/ppiankov/communitysurf/internal/post"
	"github.com/ppiankov/communitysurf/internal/rank"
	"github.com/ppiankov/communitysurf/internal/render"
)

type FiltersRequest struct {
	Search         string `json:"search"`
	Platform       string `json:"platform"`
	Category       string `json:"category"`
	Competitor     string `json:"competitor"`
	Classification string `json:"classification"`
}

func (r FiltersRequest) options() filter.Options {
	return filter.Options{
		Search:         r.Search,
		Platform:       r.Platform,
		Category:       r.Category,
		Competitor:     r.Competitor,
		Classification: r.Classification,
	}
}

func filtersResponse(f filter.Options) FiltersRequest {
	return FiltersRequest{
		Search:         f.Search,
		Platform:       f.Platform,
		Category:       f.Category,
		Competitor:     f.Competitor,
		Classification: f.Classification,
	}
}

// HandleGetFeed renders the feed. Query parameters override the stored
// sort and filters for this request only.
func (h *Handler) HandleGetFeed(c *gin.Context) {
	mode := h.Feed.Sort()
	if v, ok := c.GetQuery("sort"); ok {
		mode = rank.ParseMode(v)
	}

	f := h.Feed.Filters()
	for param, field := range map[string]*string{
		"search":         &f.Search,
		"platform":       &f.Platform,
		"category":       &f.Category,
		"competitor":     &f.Competitor,
		"classification": &f.Classification,
	} {
		if v, ok := c.GetQuery(param); ok {
			*field = v
		}
	}
	if err := h.Feed.Validate(f); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	in := render.Input{
		View:     h.Feed.Query(mode, f),
		Statuses: h.Fetch.Statuses(),
		Now:      h.Clock.Now(),
		Limit:    limit,
	}
	c.Header("Content-Type", "application/json; charset=utf-8")
	c.Status(http.StatusOK)
	if err := render.NewJSON().Format(c.Writer, in); err != nil {
		h.Log.Warn("write feed", "error", err)
	}
}

type CatalogResponse struct {
	Categories      map[string][]string `json:"categories"`
	Classifications []string            `json:"classifications"`
	Platforms       []post.Source       `json:"platforms"`
	Sorts           []rank.Mode         `json:"sorts"`
}

// HandleGetCatalog lists the values the filter and sort endpoints accept.
func (h *Handler) HandleGetCatalog(c *gin.Context) {
	catalog := h.Feed.Catalog()
	categories := make(map[string][]string)
	for _, cat := range catalog.Categories() {
		categories[cat] = catalog.Competitors(cat)
	}
	c.JSON(http.StatusOK, CatalogResponse{
		Categories:      categories,
		Classifications: post.Classifications,
		Platforms:       post.Sources,
		Sorts:           rank.Modes,
	})
}

type SortRequest struct {
	Sort string `json:"sort" binding:"required"`
}

func (h *Handler) HandleSetSort(c *gin.Context) {
	var req SortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	mode := h.Feed.SetSort(req.Sort)
	c.JSON(http.StatusOK, gin.H{"sort": mode})
}

func (h *Handler) HandleSetFilters(c *gin.Context) {
	var req FiltersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.Feed.SetFilters(req.options()); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, filtersResponse(h.Feed.Filters()))
}

func (h *Handler) HandleMarkCompleted(c *gin.Context) {
	key := c.Param("key")
	if err := h.Feed.MarkCompleted(c.Request.Context(), key); err != nil {
		h.Log.Error("mark completed", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not save completed post"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) HandleUnmarkCompleted(c *gin.Context) {
	key := c.Param("key")
	if err := h.Feed.UnmarkCompleted(c.Request.Context(), key); err != nil {
		h.Log.Error("unmark completed", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not restore post"})
		return
	}
	c.Status(http.StatusNoContent)
}
