// Package messaging defines interfaces for real-time communication.
package messaging

import "github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"

// Broadcaster defines the interface for managing SSE client connections and
// broadcasting display updates.
type Broadcaster interface {
	AddClient(displayID string) chan string
	RemoveClient(ch chan string, displayID string)
	GetConnectionCount(displayID string) int
	GetTotalConnectionCount() int
	BroadcastRenderState(state *display.RenderState)
	BroadcastAlert(displayID, severity, message string)
	HasViewers(displayID string) bool
}
