package services

import (
	"fmt"
	"sync"

	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/persistence/state"
)

// DebugRedirector decides whether a display should open in configuration
// mode instead of showing images. A screen with no image source configured
// gets sent into debug mode exactly once; an operator who explicitly leaves
// debug mode is never redirected again, across restarts.
type DebugRedirector struct {
	displayID string
	store     state.KV
	logger    *logging.ChanneledLogger

	mu                   sync.Mutex
	hasAttempted         bool
	hasHandledDebugEntry bool
}

// NewDebugRedirector builds a redirector for one display. The exit flag is
// read from and written to the injected key-value store.
func NewDebugRedirector(displayID string, store state.KV, logger *logging.ChanneledLogger) *DebugRedirector {
	return &DebugRedirector{
		displayID: displayID,
		store:     store,
		logger:    logger,
	}
}

func (r *DebugRedirector) exitKey() string {
	return fmt.Sprintf("debug_exited:%s", r.displayID)
}

// Evaluate applies the entry heuristic for one render. debugMode and output
// come from the display's current params. It returns true when the caller
// should route into configuration mode.
//
// Safe to call repeatedly; the redirect can fire at most once per process
// lifetime and never once the operator has explicitly exited.
func (r *DebugRedirector) Evaluate(debugMode bool, output string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	exited, err := r.store.GetBool(r.exitKey())
	if err != nil {
		r.logger.Debug().Warn("Failed to read debug exit flag, treating as unset",
			"displayId", r.displayID, "error", err.Error())
	}

	if debugMode {
		if !r.hasHandledDebugEntry {
			r.hasHandledDebugEntry = true
			r.logger.Debug().Debug("Debug entry handled", "displayId", r.displayID)
		}
		return false
	}

	// debugMode is false. A prior handled entry means the operator left
	// debug mode on purpose; remember that durably.
	if r.hasHandledDebugEntry && !exited {
		if err := r.store.SetBool(r.exitKey(), true); err != nil {
			r.logger.Debug().Error("Failed to persist debug exit flag",
				"displayId", r.displayID, "error", err.Error())
		} else {
			r.logger.Debug().Info("Debug mode explicitly exited", "displayId", r.displayID)
		}
		exited = true
	}

	if exited {
		return false
	}

	if !r.hasAttempted {
		r.hasAttempted = true
		if output == "" {
			r.logger.Debug().Info("No output source configured, redirecting to debug mode",
				"displayId", r.displayID)
			return true
		}
	}
	return false
}
