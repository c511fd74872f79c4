package performance

import (
	"sync"
	"time"
)

// Tracker retains a bounded window of recent markers and aggregates simple
// per-operation statistics.
type Tracker struct {
	markers    []*Marker
	maxMarkers int
	started    time.Time
	mu         sync.RWMutex
}

// OperationStats summarizes completed markers for one operation name.
type OperationStats struct {
	Operation   string        `json:"operation"`
	Count       int           `json:"count"`
	Failures    int           `json:"failures"`
	TotalTime   time.Duration `json:"totalTime"`
	AverageTime time.Duration `json:"averageTime"`
	MaxTime     time.Duration `json:"maxTime"`
}

// NewTracker creates a tracker that retains up to maxMarkers recent markers.
func NewTracker(maxMarkers int) *Tracker {
	if maxMarkers <= 0 {
		maxMarkers = 1000
	}
	return &Tracker{
		maxMarkers: maxMarkers,
		started:    time.Now(),
	}
}

// StartOperation creates and tracks a new marker for an operation. The
// returned marker is completed by the caller.
func (t *Tracker) StartOperation(operation, displayID string) *Marker {
	marker := &Marker{
		Operation: operation,
		DisplayID: displayID,
		StartTime: time.Now(),
		Success:   true, // assume success until proven otherwise
	}

	t.mu.Lock()
	t.markers = append(t.markers, marker)
	if len(t.markers) > t.maxMarkers {
		t.markers = t.markers[len(t.markers)-t.maxMarkers:]
	}
	t.mu.Unlock()

	return marker
}

// Stats aggregates completed markers per operation name.
func (t *Tracker) Stats() map[string]*OperationStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := make(map[string]*OperationStats)
	for _, m := range t.markers {
		if !m.Completed {
			continue
		}
		s, ok := stats[m.Operation]
		if !ok {
			s = &OperationStats{Operation: m.Operation}
			stats[m.Operation] = s
		}
		s.Count++
		if !m.Success {
			s.Failures++
		}
		s.TotalTime += m.Duration
		if m.Duration > s.MaxTime {
			s.MaxTime = m.Duration
		}
	}
	for _, s := range stats {
		if s.Count > 0 {
			s.AverageTime = s.TotalTime / time.Duration(s.Count)
		}
	}
	return stats
}

// Uptime reports how long the tracker has been running.
func (t *Tracker) Uptime() time.Duration {
	return time.Since(t.started)
}
