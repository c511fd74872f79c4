package handlers

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/gjbm2/screen-machine-sub001/internal/application/services"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/messaging"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/performance"
	"github.com/gjbm2/screen-machine-sub001/pkg/config"
)

var activeSSEConnections int64

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamHandlers contains the SSE and websocket streaming handlers
type StreamHandlers struct {
	displayService *services.DisplayService
	broadcaster    *messaging.SSEBroadcaster
	monitorHub     *messaging.MonitorHub
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewStreamHandlers creates stream handlers with injected dependencies
func NewStreamHandlers(displayService *services.DisplayService, broadcaster *messaging.SSEBroadcaster, monitorHub *messaging.MonitorHub, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *StreamHandlers {
	return &StreamHandlers{
		displayService: displayService,
		broadcaster:    broadcaster,
		monitorHub:     monitorHub,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// GetDisplaySSE handles GET /api/v1/displays/:id/sse - the render state
// push channel a display frontend subscribes to.
func (h *StreamHandlers) GetDisplaySSE(c *gin.Context) {
	displayID := c.Param("id")
	start := time.Now()
	marker := h.perfTracker.StartOperation("sse_connection", displayID)
	defer marker.Complete()

	if _, err := h.displayService.GetDisplay(displayID); err != nil {
		respondNotFoundOrError(c, h.logger, err)
		return
	}

	if atomic.LoadInt64(&activeSSEConnections) >= int64(config.MaxSSEConnections) {
		h.logger.SSE().Warn("SSE connection limit reached", "limit", config.MaxSSEConnections)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many connections"})
		return
	}
	if h.broadcaster.GetConnectionCount(displayID) >= config.MaxDisplayConnections {
		h.logger.SSE().Warn("Per-display SSE connection limit reached",
			"displayId", displayID, "limit", config.MaxDisplayConnections)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many connections for display"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Cache-Control")

	ch := h.broadcaster.AddClient(displayID)
	atomic.AddInt64(&activeSSEConnections, 1)
	defer func() {
		atomic.AddInt64(&activeSSEConnections, -1)
		h.broadcaster.RemoveClient(ch, displayID)
	}()

	// Send the current state immediately so a reconnecting frontend does
	// not sit blank until the next change.
	if snap, err := h.displayService.GetState(displayID); err == nil {
		h.broadcaster.BroadcastRenderState(snap)
	}

	confirm := fmt.Sprintf("data: {\"type\":\"connected\",\"displayId\":\"%s\",\"timestamp\":\"%s\"}\n\n",
		displayID, time.Now().Format(time.RFC3339))
	if _, err := c.Writer.WriteString(confirm); err != nil {
		return
	}
	c.Writer.Flush()

	clientCtx := c.Request.Context()

	h.logger.SSE().Info("SSE connection established",
		"displayId", displayID,
		"totalConnections", atomic.LoadInt64(&activeSSEConnections),
		"setupDuration", time.Since(start))
	marker.SetSuccess(true)

	heartbeat := time.NewTicker(time.Duration(config.SSEHeartbeatIntervalSeconds) * time.Second)
	defer heartbeat.Stop()

	maxLifetime := time.NewTimer(time.Duration(config.SSEConnectionTimeoutMinutes) * time.Minute)
	defer maxLifetime.Stop()

	// A stream that has carried no render updates for this long is assumed
	// orphaned; the frontend reconnects and resyncs from the snapshot push.
	inactivityWindow := time.Duration(config.SSEInactivityTimeoutMinutes) * time.Minute
	inactivity := time.NewTimer(inactivityWindow)
	defer inactivity.Stop()

	connectionStart := time.Now()
	for {
		select {
		case <-clientCtx.Done():
			h.logger.SSE().Info("SSE client disconnected",
				"displayId", displayID,
				"connectionDuration", time.Since(connectionStart))
			return

		case <-maxLifetime.C:
			h.logger.SSE().Info("SSE connection lifetime reached, closing",
				"displayId", displayID,
				"connectionDuration", time.Since(connectionStart))
			return

		case <-inactivity.C:
			h.logger.SSE().Info("SSE connection idle, closing",
				"displayId", displayID,
				"idleWindow", inactivityWindow)
			return

		case message, ok := <-ch:
			if !ok {
				return
			}
			if _, err := c.Writer.WriteString(message); err != nil {
				h.logger.SSE().Error("SSE write failed", "displayId", displayID, "error", err.Error())
				return
			}
			c.Writer.Flush()
			if !inactivity.Stop() {
				<-inactivity.C
			}
			inactivity.Reset(inactivityWindow)

		case <-heartbeat.C:
			hb := fmt.Sprintf("data: {\"type\":\"heartbeat\",\"timestamp\":\"%s\"}\n\n", time.Now().Format(time.RFC3339))
			if _, err := c.Writer.WriteString(hb); err != nil {
				h.logger.SSE().Error("SSE heartbeat failed", "displayId", displayID, "error", err.Error())
				return
			}
			c.Writer.Flush()
		}
	}
}

// GetDisplayWS handles GET /api/v1/displays/:id/ws - a websocket carrying
// the same render state and alert events as the SSE stream, for surfaces
// that prefer a socket.
func (h *StreamHandlers) GetDisplayWS(c *gin.Context) {
	displayID := c.Param("id")

	if _, err := h.displayService.GetDisplay(displayID); err != nil {
		respondNotFoundOrError(c, h.logger, err)
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.SSE().Error("Websocket upgrade failed", "displayId", displayID, "error", err.Error())
		return
	}

	ch := h.broadcaster.AddSocketClient(displayID)
	done := make(chan struct{})

	go func() {
		defer conn.Close()
		for {
			select {
			case message, ok := <-ch:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}
			case <-done:
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
		}
	}()

	h.logger.SSE().Info("Websocket connection established", "displayId", displayID)

	// Same resync push the SSE path does on connect.
	if snap, err := h.displayService.GetState(displayID); err == nil {
		h.broadcaster.BroadcastRenderState(snap)
	}

	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.broadcaster.RemoveSocketClient(ch, displayID)
	close(done)
	h.logger.SSE().Info("Websocket client disconnected", "displayId", displayID)
}

// GetMonitorWS handles GET /ws/monitor - upgrades to a websocket carrying
// periodic fleet status for the operator dashboard.
func (h *StreamHandlers) GetMonitorWS(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.SSE().Error("Websocket upgrade failed", "error", err.Error())
		return
	}

	client := &messaging.MonitorClient{
		Conn: conn,
		Send: make(chan []byte, 8),
	}
	h.monitorHub.Register(client)

	go h.monitorWritePump(client)
	go h.monitorReadPump(client)
}

func (h *StreamHandlers) monitorWritePump(client *messaging.MonitorClient) {
	defer client.Conn.Close()
	for message := range client.Send {
		client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// monitorReadPump drains inbound frames so pings and close handshakes are
// processed, unregistering on any read error.
func (h *StreamHandlers) monitorReadPump(client *messaging.MonitorClient) {
	defer h.monitorHub.Unregister(client)
	client.Conn.SetReadLimit(512)
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
