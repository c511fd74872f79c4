// Package alerts raises operator-facing notifications when a display keeps
// failing to load new images. Unattended screens cannot report problems
// themselves, so repeated failures page out via SSE and optionally email.
package alerts

import (
	"fmt"
	"sync"

	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/messaging"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
)

// Service tracks consecutive load failures per display and escalates once a
// threshold is crossed.
type Service struct {
	broadcaster messaging.Broadcaster
	sender      EmailSender // nil when email alerting is not configured
	threshold   int
	logger      *logging.ChanneledLogger

	mu       sync.Mutex
	failures map[string]int
	alerted  map[string]bool
}

// NewService builds the alert service. sender may be nil.
func NewService(broadcaster messaging.Broadcaster, sender EmailSender, threshold int, logger *logging.ChanneledLogger) *Service {
	if threshold < 1 {
		threshold = 1
	}
	return &Service{
		broadcaster: broadcaster,
		sender:      sender,
		threshold:   threshold,
		logger:      logger,
		failures:    make(map[string]int),
		alerted:     make(map[string]bool),
	}
}

// RecordFailure notes one failed image load for a display. Crossing the
// configured threshold escalates exactly once until a success resets it.
func (s *Service) RecordFailure(displayID, url string, loadErr error) {
	s.mu.Lock()
	s.failures[displayID]++
	count := s.failures[displayID]
	shouldEscalate := count >= s.threshold && !s.alerted[displayID]
	if shouldEscalate {
		s.alerted[displayID] = true
	}
	s.mu.Unlock()

	s.logger.Alert().Warn("Image load failed",
		"displayId", displayID, "url", url, "consecutiveFailures", count, "error", loadErr.Error())

	if !shouldEscalate {
		return
	}

	message := fmt.Sprintf("Display %s has failed to load %d consecutive images (last: %s)", displayID, count, url)
	s.logger.Alert().Error("Display failure threshold crossed", "displayId", displayID, "failures", count)
	s.broadcaster.BroadcastAlert(displayID, "error", message)

	if s.sender != nil {
		subject := fmt.Sprintf("Screen Machine alert: display %s failing", displayID)
		if err := s.sender.SendAlertEmail(subject, message); err != nil {
			s.logger.Alert().Error("Failed to send alert email", "displayId", displayID, "error", err.Error())
		}
	}
}

// RecordSuccess clears the failure streak for a display.
func (s *Service) RecordSuccess(displayID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, displayID)
	delete(s.alerted, displayID)
}

// FailureCount reports the current consecutive failure streak.
func (s *Service) FailureCount(displayID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[displayID]
}
