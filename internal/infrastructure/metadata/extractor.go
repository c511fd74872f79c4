// Package metadata extracts per-image key/value metadata, either from a
// configured extractor service or from text chunks embedded in the image
// itself.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
)

// Extractor resolves (imageURL, tagName) to an ordered metadata map.
type Extractor interface {
	Extract(ctx context.Context, imageURL, tagName string) (*display.Metadata, error)
}

// HTTPExtractor queries an extractor service when one is configured and
// falls back to reading metadata embedded in the image (PNG tEXt/iTXt
// chunks). Either path preserves key order.
type HTTPExtractor struct {
	serviceURL string // empty means embedded-only
	client     *http.Client
	maxBytes   int64
	logger     *logging.ChanneledLogger
}

// NewHTTPExtractor creates an extractor. serviceURL may be empty, in which
// case only embedded image metadata is used. maxBytes caps how much of a
// response body is read on either path.
func NewHTTPExtractor(serviceURL string, timeout time.Duration, maxBytes int64, logger *logging.ChanneledLogger) *HTTPExtractor {
	return &HTTPExtractor{
		serviceURL: serviceURL,
		client:     &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// Extract fetches metadata for an image. tagName, when non-empty, narrows
// the extraction to one tag namespace (passed through to the service, or
// used to select a single embedded chunk).
func (e *HTTPExtractor) Extract(ctx context.Context, imageURL, tagName string) (*display.Metadata, error) {
	start := time.Now()

	var meta *display.Metadata
	var err error
	if e.serviceURL != "" {
		meta, err = e.extractViaService(ctx, imageURL, tagName)
	} else {
		meta, err = e.extractEmbedded(ctx, imageURL, tagName)
	}
	if err != nil {
		return nil, err
	}

	if e.logger != nil {
		e.logger.Metadata().Debug("Metadata extracted",
			"url", imageURL,
			"tag", tagName,
			"entries", meta.Len(),
			"duration", time.Since(start))
	}
	return meta, nil
}

func (e *HTTPExtractor) extractViaService(ctx context.Context, imageURL, tagName string) (*display.Metadata, error) {
	q := url.Values{}
	q.Set("url", imageURL)
	if tagName != "" {
		q.Set("tag", tagName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.serviceURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("metadata request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("metadata read: %w", err)
	}

	meta := display.NewMetadata()
	if err := json.Unmarshal(body, meta); err != nil {
		return nil, fmt.Errorf("metadata parse: %w", err)
	}
	return meta, nil
}

func (e *HTTPExtractor) extractEmbedded(ctx context.Context, imageURL, tagName string) (*display.Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("image read: %w", err)
	}

	meta, err := ParsePNGTextChunks(data, tagName)
	if err != nil {
		return nil, err
	}
	return meta, nil
}
