package messaging

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
)

// MonitorClient represents a single connected monitoring dashboard client.
type MonitorClient struct {
	Conn *websocket.Conn
	Send chan []byte
}

// DisplayStatus is the per-display slice of the payload sent to monitoring
// clients on each tick.
type DisplayStatus struct {
	DisplayID       string    `json:"displayId"`
	Name            string    `json:"name"`
	CurrentURL      string    `json:"currentUrl"`
	IsTransitioning bool      `json:"isTransitioning"`
	Viewers         int       `json:"viewers"`
	LastChange      time.Time `json:"lastChange"`
}

// MonitorPayload is the complete data structure sent to the dashboard.
type MonitorPayload struct {
	Displays     []DisplayStatus `json:"displays"`
	TotalCount   int             `json:"totalCount"`
	ActiveCount  int             `json:"activeCount"`
	ViewerCount  int             `json:"viewerCount"`
	GeneratedAt  time.Time       `json:"generatedAt"`
	UptimeSecond int64           `json:"uptimeSeconds"`
}

// StatusSource supplies the current fleet snapshot for broadcasting.
type StatusSource interface {
	DisplayStatuses() []DisplayStatus
	Uptime() time.Duration
}

// MonitorHub manages all connected monitoring clients and broadcasts fleet
// status on a fixed tick.
type MonitorHub struct {
	clients    map[*MonitorClient]bool
	register   chan *MonitorClient
	unregister chan *MonitorClient
	source     StatusSource
	logger     *logging.ChanneledLogger
	mu         sync.RWMutex
}

// NewMonitorHub creates a new hub instance.
func NewMonitorHub(source StatusSource, logger *logging.ChanneledLogger) *MonitorHub {
	return &MonitorHub{
		clients:    make(map[*MonitorClient]bool),
		register:   make(chan *MonitorClient),
		unregister: make(chan *MonitorClient),
		source:     source,
		logger:     logger,
	}
}

// Run starts the hub's main loop. This should be run as a goroutine.
func (h *MonitorHub) Run() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.SSE().Debug("Monitor client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			h.logger.SSE().Debug("Monitor client unregistered")

		case <-ticker.C:
			h.broadcastStatus()
		}
	}
}

// Register queues a client for registration.
func (h *MonitorHub) Register(client *MonitorClient) {
	h.register <- client
}

// Unregister queues a client for unregistration.
func (h *MonitorHub) Unregister(client *MonitorClient) {
	h.unregister <- client
}

func (h *MonitorHub) broadcastStatus() {
	h.mu.RLock()
	hasClients := len(h.clients) > 0
	h.mu.RUnlock()
	if !hasClients {
		return
	}

	payload := h.preparePayload()
	message, err := json.Marshal(payload)
	if err != nil {
		h.logger.SSE().Error("Failed to encode monitor payload", "error", err.Error())
		return
	}

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.Send <- message:
		default:
		}
	}
	h.mu.RUnlock()
}

func (h *MonitorHub) preparePayload() MonitorPayload {
	statuses := h.source.DisplayStatuses()
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].DisplayID < statuses[j].DisplayID })

	active, viewers := 0, 0
	for _, s := range statuses {
		if s.CurrentURL != "" {
			active++
		}
		viewers += s.Viewers
	}

	return MonitorPayload{
		Displays:     statuses,
		TotalCount:   len(statuses),
		ActiveCount:  active,
		ViewerCount:  viewers,
		GeneratedAt:  time.Now().UTC(),
		UptimeSecond: int64(h.source.Uptime().Seconds()),
	}
}
