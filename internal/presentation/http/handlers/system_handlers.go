package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gjbm2/screen-machine-sub001/internal/application/container"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
)

// SystemHandlers exposes health, operational stats and log level control.
type SystemHandlers struct {
	container *container.Container
}

// NewSystemHandlers creates system handlers.
func NewSystemHandlers(c *container.Container) *SystemHandlers {
	return &SystemHandlers{container: c}
}

// GetHealth handles GET /health
func (h *SystemHandlers) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"displays":       h.container.DisplayService.Count(),
		"sseConnections": h.container.Broadcaster.GetTotalConnectionCount(),
		"uptimeSeconds":  int64(h.container.PerfTracker.Uptime().Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// GetStats handles GET /api/v1/system/stats - per-operation performance
// aggregates from the tracker.
func (h *SystemHandlers) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"operations":    h.container.PerfTracker.Stats(),
		"metadataCache": h.container.MetadataCache.Len(),
	})
}

// GetLogLevels handles GET /api/v1/system/logs/levels
func (h *SystemHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, h.container.Logger.GetChannelLevels())
}

// SetLogLevel handles POST /api/v1/system/logs/levels - sets the log level
// for a specific channel.
func (h *SystemHandlers) SetLogLevel(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	var level slog.Level
	switch req.Level {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log level specified"})
		return
	}

	if err := h.container.Logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": req.Channel, "level": req.Level})
}
