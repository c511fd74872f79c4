// Package messaging provides the concrete implementation of the SSE broadcaster.
package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
)

// SSEBroadcaster manages display-scoped push connections. Each connected
// frontend subscribes to one display and receives render state pushes,
// either as SSE frames or as websocket JSON envelopes.
type SSEBroadcaster struct {
	displayClients map[string][]chan string // displayId -> SSE channels
	socketClients  map[string][]chan []byte // displayId -> websocket channels
	mu             sync.Mutex
	logger         *logging.ChanneledLogger
}

var (
	globalBroadcaster *SSEBroadcaster
	once              sync.Once
)

// NewSSEBroadcaster creates the singleton SSEBroadcaster instance.
func NewSSEBroadcaster(logger *logging.ChanneledLogger) *SSEBroadcaster {
	once.Do(func() {
		globalBroadcaster = &SSEBroadcaster{
			displayClients: make(map[string][]chan string),
			socketClients:  make(map[string][]chan []byte),
			logger:         logger,
		}
	})
	return globalBroadcaster
}

// AddClient registers a new SSE client for a display.
func (b *SSEBroadcaster) AddClient(displayID string) chan string {
	ch := make(chan string, 10)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.displayClients[displayID] = append(b.displayClients[displayID], ch)

	b.logger.SSE().Debug("SSE client registered", "displayId", displayID)
	return ch
}

// RemoveClient removes an SSE client from a display.
func (b *SSEBroadcaster) RemoveClient(ch chan string, displayID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, exists := b.displayClients[displayID]; exists {
		newClients := make([]chan string, 0, len(clients))
		for _, client := range clients {
			if client != ch {
				newClients = append(newClients, client)
			}
		}
		b.displayClients[displayID] = newClients

		if len(b.displayClients[displayID]) == 0 {
			delete(b.displayClients, displayID)
		}
	}
	b.logger.SSE().Debug("SSE client unregistered", "displayId", displayID)
}

// AddSocketClient registers a websocket client for a display. Socket
// clients receive the same events as SSE clients, framed as JSON
// envelopes instead of SSE messages.
func (b *SSEBroadcaster) AddSocketClient(displayID string) chan []byte {
	ch := make(chan []byte, 10)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.socketClients[displayID] = append(b.socketClients[displayID], ch)

	b.logger.SSE().Debug("Socket client registered", "displayId", displayID)
	return ch
}

// RemoveSocketClient removes a websocket client from a display.
func (b *SSEBroadcaster) RemoveSocketClient(ch chan []byte, displayID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, exists := b.socketClients[displayID]; exists {
		newClients := make([]chan []byte, 0, len(clients))
		for _, client := range clients {
			if client != ch {
				newClients = append(newClients, client)
			}
		}
		b.socketClients[displayID] = newClients

		if len(b.socketClients[displayID]) == 0 {
			delete(b.socketClients, displayID)
		}
	}
	b.logger.SSE().Debug("Socket client unregistered", "displayId", displayID)
}

// GetConnectionCount returns the connection count for a specific display.
func (b *SSEBroadcaster) GetConnectionCount(displayID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.displayClients[displayID])
}

// GetTotalConnectionCount returns the connection count across all displays.
func (b *SSEBroadcaster) GetTotalConnectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, clients := range b.displayClients {
		total += len(clients)
	}
	for _, clients := range b.socketClients {
		total += len(clients)
	}
	return total
}

// BroadcastRenderState pushes a render state snapshot to every client of a
// display.
func (b *SSEBroadcaster) BroadcastRenderState(state *display.RenderState) {
	payload, err := json.Marshal(state)
	if err != nil {
		b.logger.SSE().Error("Failed to encode render state", "displayId", state.DisplayID, "error", err.Error())
		return
	}
	b.broadcast(state.DisplayID, "display_update", payload)
}

// BroadcastAlert pushes an alert event to every client of a display.
func (b *SSEBroadcaster) BroadcastAlert(displayID, severity, message string) {
	payload, err := json.Marshal(map[string]string{
		"displayId": displayID,
		"severity":  severity,
		"message":   message,
	})
	if err != nil {
		return
	}
	b.broadcast(displayID, "alert", payload)
}

func (b *SSEBroadcaster) broadcast(displayID, event string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.SSE().Error("Panic recovered in broadcast", "error", r, "displayId", displayID)
		}
	}()

	message := fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload)
	envelope := []byte(fmt.Sprintf("{\"type\":%q,\"data\":%s}", event, payload))

	b.logger.SSE().Debug("Broadcasting to display",
		"displayId", displayID, "event", event,
		"message", strings.ReplaceAll(message, "\n", "\\n"))

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.displayClients[displayID] {
		select {
		case ch <- message:
		default:
			b.logger.SSE().Warn("SSE channel full, message dropped", "displayId", displayID, "event", event)
		}
	}
	for _, ch := range b.socketClients[displayID] {
		select {
		case ch <- envelope:
		default:
			b.logger.SSE().Warn("Socket channel full, message dropped", "displayId", displayID, "event", event)
		}
	}
}

// HasViewers reports whether any client is currently watching a display.
func (b *SSEBroadcaster) HasViewers(displayID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.displayClients[displayID]) > 0 || len(b.socketClients[displayID]) > 0
}
