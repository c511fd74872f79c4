// Package media provides image preloading: fetching and fully decoding a
// candidate image before it is shown, and reporting its intrinsic size.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
)

// Preloader fetches and decodes images off-screen. A decode error here is
// the pipeline's PreloadFailure signal; a successful preload guarantees the
// rendering surface can show the image and supplies its intrinsic size.
type Preloader struct {
	client   *http.Client
	maxBytes int64
	logger   *logging.ChanneledLogger
}

// NewPreloader creates a preloader with a bounded per-fetch timeout.
func NewPreloader(timeout time.Duration, maxBytes int, logger *logging.ChanneledLogger) *Preloader {
	return &Preloader{
		client:   &http.Client{Timeout: timeout},
		maxBytes: int64(maxBytes),
		logger:   logger,
	}
}

// Preload fetches url and decodes it completely, returning the intrinsic
// pixel size. Webp payloads are decoded explicitly; everything else goes
// through the generic decoder (png, jpeg, gif, bmp, tiff).
func (p *Preloader) Preload(ctx context.Context, url string) (display.Size, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return display.Size{}, fmt.Errorf("preload request for %s: %w", url, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return display.Size{}, fmt.Errorf("preload fetch for %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return display.Size{}, fmt.Errorf("preload fetch for %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes))
	if err != nil {
		return display.Size{}, fmt.Errorf("preload read for %s: %w", url, err)
	}

	size, err := decodeIntrinsicSize(data, resp.Header.Get("Content-Type"))
	if err != nil {
		return display.Size{}, fmt.Errorf("preload decode for %s: %w", url, err)
	}

	if p.logger != nil {
		p.logger.Display().Debug("Image preloaded",
			"url", url,
			"width", size.Width,
			"height", size.Height,
			"bytes", len(data),
			"duration", time.Since(start))
	}
	return size, nil
}

func decodeIntrinsicSize(data []byte, contentType string) (display.Size, error) {
	if strings.Contains(contentType, "webp") || isWebp(data) {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return display.Size{}, err
		}
		b := img.Bounds()
		return display.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return display.Size{}, err
	}
	b := img.Bounds()
	return display.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}, nil
}

// isWebp sniffs the RIFF/WEBP container magic.
func isWebp(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}
