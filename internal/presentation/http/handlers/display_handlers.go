// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gjbm2/screen-machine-sub001/internal/application/services"
	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/performance"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/persistence/state"
)

// DisplayHandlers contains all display-related HTTP handlers
type DisplayHandlers struct {
	displayService *services.DisplayService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewDisplayHandlers creates display handlers with injected dependencies
func NewDisplayHandlers(displayService *services.DisplayService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *DisplayHandlers {
	return &DisplayHandlers{
		displayService: displayService,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

type createDisplayRequest struct {
	Name string `json:"name"`
}

// PostDisplay handles POST /api/v1/displays - registers a new display.
// Display parameters come from the query string, same keys a display
// frontend would carry in its URL.
func (h *DisplayHandlers) PostDisplay(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("create_display_request", "")
	defer marker.Complete()

	// The body is optional; a bare POST registers an unnamed display.
	var req createDisplayRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
			return
		}
	}
	if req.Name == "" {
		req.Name = "display"
	}

	params := display.ParseParams(c.Request.URL.Query())

	rec, err := h.displayService.CreateDisplay(req.Name, params)
	if err != nil {
		h.logger.Display().Error("Display creation failed", "name", req.Name, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create display"})
		return
	}

	marker.SetSuccess(true)
	h.logger.Display().Info("Display created via API", "displayId", rec.ID, "duration", time.Since(start))
	c.JSON(http.StatusCreated, rec)
}

// GetDisplays handles GET /api/v1/displays - lists the registry.
func (h *DisplayHandlers) GetDisplays(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"displays": h.displayService.ListDisplays()})
}

// GetDisplay handles GET /api/v1/displays/:id
func (h *DisplayHandlers) GetDisplay(c *gin.Context) {
	rec, err := h.displayService.GetDisplay(c.Param("id"))
	if err != nil {
		respondNotFoundOrError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// PutDisplayParams handles PUT /api/v1/displays/:id/params - replaces the
// display's parameters wholesale from the query string.
func (h *DisplayHandlers) PutDisplayParams(c *gin.Context) {
	id := c.Param("id")
	marker := h.perfTracker.StartOperation("update_params_request", id)
	defer marker.Complete()

	params := display.ParseParams(c.Request.URL.Query())

	rec, err := h.displayService.UpdateParams(id, params)
	if err != nil {
		respondNotFoundOrError(c, h.logger, err)
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, rec)
}

// DeleteDisplay handles DELETE /api/v1/displays/:id
func (h *DisplayHandlers) DeleteDisplay(c *gin.Context) {
	id := c.Param("id")
	if err := h.displayService.DeleteDisplay(id); err != nil {
		respondNotFoundOrError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// GetDisplayState handles GET /api/v1/displays/:id/state - the current
// render state snapshot, identical in shape to the SSE push payload.
func (h *DisplayHandlers) GetDisplayState(c *gin.Context) {
	snap, err := h.displayService.GetState(c.Param("id"))
	if err != nil {
		respondNotFoundOrError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetDisplayRoute handles GET /api/v1/displays/:id/route - answers whether
// the frontend should open the display surface or the configuration UI.
func (h *DisplayHandlers) GetDisplayRoute(c *gin.Context) {
	route, err := h.displayService.Route(c.Param("id"))
	if err != nil {
		respondNotFoundOrError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": route})
}

// PostDisplayNext handles POST /api/v1/displays/:id/next - forces an
// immediate poll of the display's source.
func (h *DisplayHandlers) PostDisplayNext(c *gin.Context) {
	id := c.Param("id")
	if err := h.displayService.Next(id); err != nil {
		respondNotFoundOrError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"triggered": id})
}

type resizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PostDisplayResize handles POST /api/v1/displays/:id/resize - a frontend
// reporting its container size.
func (h *DisplayHandlers) PostDisplayResize(c *gin.Context) {
	id := c.Param("id")

	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "width and height must be positive"})
		return
	}

	if err := h.displayService.Resize(id, display.Size{Width: req.Width, Height: req.Height}); err != nil {
		respondNotFoundOrError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resized": id})
}

func respondNotFoundOrError(c *gin.Context, logger *logging.ChanneledLogger, err error) {
	if errors.Is(err, state.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "display not found"})
		return
	}
	logger.Display().Error("Display request failed", "path", c.Request.URL.Path, "error", err.Error())
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
