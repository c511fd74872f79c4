package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/alerts"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/caching"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/performance"
)

type mockPreloader struct {
	fn func(ctx context.Context, url string) (display.Size, error)
}

func (m *mockPreloader) Preload(ctx context.Context, url string) (display.Size, error) {
	if m.fn != nil {
		return m.fn(ctx, url)
	}
	return display.Size{Width: 800, Height: 600}, nil
}

type mockExtractor struct {
	fn func(ctx context.Context, imageURL, tagName string) (*display.Metadata, error)
}

func (m *mockExtractor) Extract(ctx context.Context, imageURL, tagName string) (*display.Metadata, error) {
	if m.fn != nil {
		return m.fn(ctx, imageURL, tagName)
	}
	return display.NewMetadata(), nil
}

// captureBroadcaster records every render state and alert the pipeline
// produces, in emission order.
type captureBroadcaster struct {
	mu     sync.Mutex
	states []*display.RenderState
	alerts []string
}

func (c *captureBroadcaster) BroadcastRenderState(state *display.RenderState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, state)
}

func (c *captureBroadcaster) BroadcastAlert(displayID, severity, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, message)
}

func (c *captureBroadcaster) AddClient(displayID string) chan string        { return nil }
func (c *captureBroadcaster) RemoveClient(ch chan string, displayID string) {}
func (c *captureBroadcaster) GetConnectionCount(displayID string) int       { return 0 }
func (c *captureBroadcaster) GetTotalConnectionCount() int                  { return 0 }
func (c *captureBroadcaster) HasViewers(displayID string) bool              { return false }

func (c *captureBroadcaster) snapshot() []*display.RenderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*display.RenderState, len(c.states))
	copy(out, c.states)
	return out
}

// waitFor polls until a captured state satisfies pred or the deadline hits.
func (c *captureBroadcaster) waitFor(t *testing.T, pred func(*display.RenderState) bool) *display.RenderState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, s := range c.snapshot() {
			if pred(s) {
				return s
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for expected render state")
	return nil
}

func quietLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToConsole = false
	cfg.DefaultLevel = slog.LevelError
	logger, err := logging.NewChanneledLogger(cfg)
	if err != nil {
		t.Fatalf("failed to build test logger: %v", err)
	}
	return logger
}

type pipelineFixture struct {
	pipe   *Pipeline
	sink   *captureBroadcaster
	alerts *alerts.Service
	cache  *caching.MetadataStore
	cancel context.CancelFunc
}

func newPipelineFixture(t *testing.T, params display.Params, pre *mockPreloader, ext *mockExtractor) *pipelineFixture {
	t.Helper()
	logger := quietLogger(t)
	sink := &captureBroadcaster{}
	alertSvc := alerts.NewService(sink, nil, 3, logger)
	cache := caching.NewMetadataStore(time.Minute, logger)
	cfg := PipelineConfig{
		FadeFast:       40 * time.Millisecond,
		FadeSlow:       120 * time.Millisecond,
		PreloadTimeout: time.Second,
	}

	pipe := NewPipeline("disp-1", params, pre, ext, cache, sink, alertSvc, cfg, logger, performance.NewTracker(100))

	ctx, cancel := context.WithCancel(context.Background())
	go pipe.Run(ctx)
	t.Cleanup(cancel)

	return &pipelineFixture{pipe: pipe, sink: sink, alerts: alertSvc, cache: cache, cancel: cancel}
}

func TestCutSwapNeverTransitions(t *testing.T) {
	params := display.DefaultParams()
	params.Transition = display.TransitionCut

	f := newPipelineFixture(t, params, &mockPreloader{}, &mockExtractor{})

	f.pipe.Load("http://img/a.png")
	f.sink.waitFor(t, func(s *display.RenderState) bool { return s.URL == "http://img/a.png" })

	f.pipe.Load("http://img/b.png")
	f.sink.waitFor(t, func(s *display.RenderState) bool { return s.URL == "http://img/b.png" })

	for _, s := range f.sink.snapshot() {
		if s.IsTransitioning {
			t.Errorf("cut transition emitted isTransitioning=true for %s", s.URL)
		}
	}
}

func TestCutSwapIncrementsRenderKey(t *testing.T) {
	params := display.DefaultParams()
	f := newPipelineFixture(t, params, &mockPreloader{}, &mockExtractor{})

	f.pipe.Load("http://img/a.png")
	first := f.sink.waitFor(t, func(s *display.RenderState) bool { return s.URL == "http://img/a.png" })

	f.pipe.Load("http://img/b.png")
	second := f.sink.waitFor(t, func(s *display.RenderState) bool { return s.URL == "http://img/b.png" })

	if second.RenderKey <= first.RenderKey {
		t.Errorf("render key did not increase: %d then %d", first.RenderKey, second.RenderKey)
	}
	if second.PreviousURL != "http://img/a.png" {
		t.Errorf("previousUrl = %q, want a.png", second.PreviousURL)
	}
}

func TestFadeTransitionLifecycle(t *testing.T) {
	params := display.DefaultParams()
	params.Transition = display.TransitionFadeFast

	f := newPipelineFixture(t, params, &mockPreloader{}, &mockExtractor{})

	// First image swaps immediately even in fade mode.
	f.pipe.Load("http://img/a.png")
	first := f.sink.waitFor(t, func(s *display.RenderState) bool { return s.URL == "http://img/a.png" })
	if first.IsTransitioning {
		t.Fatal("first image must not fade")
	}

	f.pipe.Load("http://img/b.png")

	mid := f.sink.waitFor(t, func(s *display.RenderState) bool {
		return s.URL == "http://img/b.png" && s.IsTransitioning
	})
	if mid.OldStyle == nil || mid.NewStyle == nil {
		t.Error("transitioning state must carry both old and new styles")
	}
	if mid.DurationSeconds <= 0 {
		t.Errorf("transitioning state has duration %v, want > 0", mid.DurationSeconds)
	}

	final := f.sink.waitFor(t, func(s *display.RenderState) bool {
		return s.URL == "http://img/b.png" && !s.IsTransitioning
	})
	if final.Style == nil {
		t.Error("settled state must carry a style")
	}
}

func TestRapidLoadsLastWriteWins(t *testing.T) {
	release := make(chan struct{})
	pre := &mockPreloader{fn: func(ctx context.Context, url string) (display.Size, error) {
		if url == "http://img/a.png" {
			select {
			case <-release:
			case <-ctx.Done():
				return display.Size{}, ctx.Err()
			}
		}
		return display.Size{Width: 800, Height: 600}, nil
	}}

	params := display.DefaultParams()
	params.Transition = display.TransitionFadeFast
	f := newPipelineFixture(t, params, pre, &mockExtractor{})

	f.pipe.Load("http://img/base.png")
	f.sink.waitFor(t, func(s *display.RenderState) bool { return s.URL == "http://img/base.png" })

	f.pipe.Load("http://img/a.png")
	f.pipe.Load("http://img/b.png")

	f.sink.waitFor(t, func(s *display.RenderState) bool {
		return s.URL == "http://img/b.png" && !s.IsTransitioning
	})

	// A's preload finishes late; its result must be discarded.
	close(release)
	time.Sleep(100 * time.Millisecond)

	for _, s := range f.sink.snapshot() {
		if s.URL == "http://img/a.png" {
			t.Errorf("superseded image leaked into render state at seq %d", s.Sequence)
		}
	}
	if got := f.pipe.Snapshot().URL; got != "http://img/b.png" {
		t.Errorf("final url = %q, want b.png", got)
	}
}

func TestPreloadFailureStillShowsImage(t *testing.T) {
	pre := &mockPreloader{fn: func(ctx context.Context, url string) (display.Size, error) {
		if url == "http://img/broken.png" {
			return display.Size{}, errors.New("decode failed")
		}
		return display.Size{Width: 800, Height: 600}, nil
	}}

	params := display.DefaultParams()
	params.Transition = display.TransitionFadeFast
	f := newPipelineFixture(t, params, pre, &mockExtractor{})

	f.pipe.Load("http://img/ok.png")
	f.sink.waitFor(t, func(s *display.RenderState) bool { return s.URL == "http://img/ok.png" })

	f.pipe.Load("http://img/broken.png")
	final := f.sink.waitFor(t, func(s *display.RenderState) bool { return s.URL == "http://img/broken.png" })

	if final.IsTransitioning {
		t.Error("failed preload must swap without animation")
	}
	if got := f.alerts.FailureCount("disp-1"); got != 1 {
		t.Errorf("failure count = %d, want 1", got)
	}
}

func TestCaptionCommitsOnlyAfterFade(t *testing.T) {
	meta := display.NewMetadata()
	meta.Set("title", "Sunrise")
	ext := &mockExtractor{fn: func(ctx context.Context, imageURL, tagName string) (*display.Metadata, error) {
		return meta, nil
	}}

	params := display.DefaultParams()
	params.Transition = display.TransitionFadeFast
	params.Caption = "{title}"

	f := newPipelineFixture(t, params, &mockPreloader{}, ext)

	f.pipe.Load("http://img/a.png")
	f.sink.waitFor(t, func(s *display.RenderState) bool {
		return s.URL == "http://img/a.png" && s.Caption != nil && s.Caption.Text == "Sunrise"
	})

	meta2 := display.NewMetadata()
	meta2.Set("title", "Sunset")
	ext.fn = func(ctx context.Context, imageURL, tagName string) (*display.Metadata, error) {
		return meta2, nil
	}

	f.pipe.Load("http://img/b.png")
	f.sink.waitFor(t, func(s *display.RenderState) bool {
		return s.URL == "http://img/b.png" && !s.IsTransitioning &&
			s.Caption != nil && s.Caption.Text == "Sunset"
	})

	// While the fade was running the caption must never have shown the
	// incoming image's text.
	for _, s := range f.sink.snapshot() {
		if s.IsTransitioning && s.Caption != nil && s.Caption.Text == "Sunset" {
			t.Error("caption committed mid-fade")
		}
	}
}

func TestSameURLLoadIsNoOp(t *testing.T) {
	params := display.DefaultParams()
	f := newPipelineFixture(t, params, &mockPreloader{}, &mockExtractor{})

	f.pipe.Load("http://img/a.png")
	first := f.sink.waitFor(t, func(s *display.RenderState) bool { return s.URL == "http://img/a.png" })

	// Repeats of the current URL are no-ops even when forced by a manual
	// trigger; the surface must never be made to re-decode the element.
	before := len(f.sink.snapshot())
	f.pipe.Load("http://img/a.png")
	f.pipe.Load("http://img/a.png")
	time.Sleep(50 * time.Millisecond)

	if after := len(f.sink.snapshot()); after != before {
		t.Errorf("repeat load emitted %d extra states", after-before)
	}
	if snap := f.pipe.Snapshot(); snap.RenderKey != first.RenderKey {
		t.Errorf("repeat load bumped renderKey %d -> %d", first.RenderKey, snap.RenderKey)
	}
}

func TestParamsEditMidFadeStillSettles(t *testing.T) {
	meta := display.NewMetadata()
	meta.Set("title", "Sunrise")
	ext := &mockExtractor{fn: func(ctx context.Context, imageURL, tagName string) (*display.Metadata, error) {
		return meta, nil
	}}

	params := display.DefaultParams()
	params.Transition = display.TransitionFadeSlow
	params.Caption = "{title}"

	f := newPipelineFixture(t, params, &mockPreloader{}, ext)

	f.pipe.Load("http://img/a.png")
	f.sink.waitFor(t, func(s *display.RenderState) bool { return s.URL == "http://img/a.png" })

	f.pipe.Load("http://img/b.png")
	f.sink.waitFor(t, func(s *display.RenderState) bool {
		return s.URL == "http://img/b.png" && s.IsTransitioning
	})

	// A caption edit while the fade is running must not invalidate the
	// fade-done timer.
	params.Caption = "now: {title}"
	f.pipe.SetParams(params)

	f.sink.waitFor(t, func(s *display.RenderState) bool {
		return s.URL == "http://img/b.png" && !s.IsTransitioning
	})

	// And the next load must not be suppressed by leftover pending state.
	f.pipe.Load("http://img/c.png")
	f.sink.waitFor(t, func(s *display.RenderState) bool {
		return s.URL == "http://img/c.png" && !s.IsTransitioning
	})
}

func TestRawParamsNormalizedOnConstruction(t *testing.T) {
	params := display.Params{
		Caption:          "static text",
		BackgroundColor:  "FFF",
		CaptionBgOpacity: 5.0,
	}

	f := newPipelineFixture(t, params, &mockPreloader{}, &mockExtractor{})

	f.pipe.Load("http://img/a.png")
	got := f.sink.waitFor(t, func(s *display.RenderState) bool { return s.URL == "http://img/a.png" })

	if got.BackgroundColor != "#ffffff" {
		t.Errorf("backgroundColor = %q, want #ffffff", got.BackgroundColor)
	}
	if got.Caption == nil || got.Caption.BgOpacity != 1 {
		t.Errorf("caption bgOpacity not clamped: %+v", got.Caption)
	}
}

func TestCachedMetadataCommitsSynchronously(t *testing.T) {
	params := display.DefaultParams()
	params.Caption = "{title}"

	// The extractor erroring proves the cached entry is what committed.
	ext := &mockExtractor{fn: func(ctx context.Context, imageURL, tagName string) (*display.Metadata, error) {
		return nil, errors.New("extractor must not be called on a cache hit")
	}}

	f := newPipelineFixture(t, params, &mockPreloader{}, ext)

	meta := display.NewMetadata()
	meta.Set("title", "Cached")
	f.cache.Set("http://img/a.png", "", meta)

	f.pipe.Load("http://img/a.png")

	// The snapshot request queues behind the load, so the cached caption
	// is already committed when it answers.
	snap := f.pipe.Snapshot()
	if snap == nil || snap.Caption == nil || snap.Caption.Text != "Cached" {
		t.Fatalf("snapshot caption = %+v, want Cached", snap)
	}
}

func TestResizeRecomputesCaptionFontSize(t *testing.T) {
	params := display.DefaultParams()
	params.Caption = "static text"

	f := newPipelineFixture(t, params, &mockPreloader{}, &mockExtractor{})

	f.pipe.Load("http://img/a.png")
	f.sink.waitFor(t, func(s *display.RenderState) bool { return s.URL == "http://img/a.png" })

	f.pipe.Resize(display.Size{Width: 1920, Height: 1080})
	f.sink.waitFor(t, func(s *display.RenderState) bool {
		return s.Caption != nil && s.Caption.FontSize == "16px"
	})

	f.pipe.Resize(display.Size{Width: 3840, Height: 2160})
	got := f.sink.waitFor(t, func(s *display.RenderState) bool {
		return s.Caption != nil && s.Caption.FontSize == "32px"
	})
	if got.Caption.Text != "static text" {
		t.Errorf("caption text = %q", got.Caption.Text)
	}
}

func TestSnapshotReflectsCurrentState(t *testing.T) {
	params := display.DefaultParams()
	f := newPipelineFixture(t, params, &mockPreloader{}, &mockExtractor{})

	if snap := f.pipe.Snapshot(); snap == nil || snap.URL != "" {
		t.Fatalf("fresh pipeline snapshot = %+v", snap)
	}

	f.pipe.Load("http://img/a.png")
	f.sink.waitFor(t, func(s *display.RenderState) bool { return s.URL == "http://img/a.png" })

	snap := f.pipe.Snapshot()
	if snap == nil || snap.URL != "http://img/a.png" {
		t.Fatalf("snapshot url = %v, want a.png", snap)
	}
}
