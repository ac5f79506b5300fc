package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/communitysurf/internal/fetch"
)

type StatusResponse struct {
	InProgress  bool           `json:"in_progress"`
	Visible     bool           `json:"visible"`
	LastSuccess time.Time      `json:"last_success,omitzero"`
	Sort        string         `json:"sort"`
	Filters     FiltersRequest `json:"filters"`
	Sources     []fetch.Status `json:"sources"`
}

func (h *Handler) HandleGetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		InProgress:  h.Fetch.InProgress(),
		Visible:     h.Fetch.Visible(),
		LastSuccess: h.Fetch.LastSuccess(),
		Sort:        string(h.Feed.Sort()),
		Filters:     filtersResponse(h.Feed.Filters()),
		Sources:     h.Fetch.Statuses(),
	})
}

// HandleRefresh runs a forced sequence and waits for it. The sequence
// outlives a disconnected client.
func (h *Handler) HandleRefresh(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	ran, err := h.Fetch.Refresh(ctx)
	switch {
	case !ran:
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "refresh throttled, try again shortly"})
		return
	case errors.Is(err, fetch.ErrSuperseded):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		h.Log.Error("refresh", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": true, "sources": h.Fetch.Statuses()})
}

type VisibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

func (h *Handler) HandleSetVisibility(c *gin.Context) {
	var req VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	scheduled := h.Fetch.SetVisible(*req.Visible)
	c.JSON(http.StatusOK, gin.H{"visible": *req.Visible, "refresh_scheduled": scheduled})
}

func (h *Handler) HandleClearCache(c *gin.Context) {
	if h.Cache != nil {
		h.Cache.Clear(c.Request.Context())
	}
	c.Status(http.StatusNoContent)
}
