// Package polling watches a display's configured output source for new
// image URLs.
package polling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
	"github.com/gjbm2/screen-machine-sub001/pkg/config"
)

// Candidate is one poll result. Changed is true only when the URL differs
// from the previous observation, or when the poll was manually triggered.
type Candidate struct {
	URL     string
	Changed bool
}

// Poller periodically fetches a display's output source and reports the
// image URL it names. The source may answer with a JSON body carrying a
// "url" field, or with the URL itself as plain text.
type Poller struct {
	displayID string
	source    string
	interval  time.Duration
	client    *http.Client
	logger    *logging.ChanneledLogger

	trigger chan struct{}
	results chan Candidate
	lastURL string
}

// New builds a poller for one display. The interval is floored at
// POLLER_MIN_INTERVAL_MS so a misconfigured refreshInterval cannot hammer
// the source.
func New(displayID, source string, interval time.Duration, logger *logging.ChanneledLogger) *Poller {
	if floor := time.Duration(config.PollerMinIntervalMS) * time.Millisecond; interval < floor {
		interval = floor
	}
	return &Poller{
		displayID: displayID,
		source:    source,
		interval:  interval,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
		trigger:   make(chan struct{}, 1),
		results:   make(chan Candidate, 4),
	}
}

// Results delivers poll outcomes. The channel closes when Run returns.
func (p *Poller) Results() <-chan Candidate {
	return p.results
}

// Trigger forces an immediate poll whose result is reported with
// Changed=true even if the URL is unchanged.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.results)

	if p.source == "" {
		p.logger.Poller().Warn("Poller started without a source, idling", "displayId", p.displayID)
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// First observation happens immediately rather than one interval in.
	p.poll(ctx, false)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, false)
		case <-p.trigger:
			p.poll(ctx, true)
		}
	}
}

func (p *Poller) poll(ctx context.Context, forced bool) {
	url, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Poller().Warn("Poll failed", "displayId", p.displayID, "source", p.source, "error", err.Error())
		return
	}
	if url == "" {
		return
	}

	changed := forced || url != p.lastURL
	p.lastURL = url

	if !changed {
		return
	}

	select {
	case p.results <- Candidate{URL: url, Changed: true}:
	case <-ctx.Done():
	}
}

func (p *Poller) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.source, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build poll request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("poll fetch for %s: %w", p.source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("poll fetch for %s: unexpected status %d", p.source, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("poll read for %s: %w", p.source, err)
	}

	return parseCandidate(body), nil
}

// parseCandidate accepts either {"url": "..."} or a bare URL body.
func parseCandidate(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
			return strings.TrimSpace(payload.URL)
		}
		return ""
	}
	return trimmed
}
