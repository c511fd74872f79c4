package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/alerts"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/caching"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/performance"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/persistence/state"
)

func newServiceFixture(t *testing.T) (*DisplayService, *state.Store) {
	t.Helper()
	logger := quietLogger(t)

	store, err := state.Open(filepath.Join(t.TempDir(), "state.db"), logger)
	if err != nil {
		t.Fatalf("failed to open state store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sink := &captureBroadcaster{}
	alertSvc := alerts.NewService(sink, nil, 3, logger)
	cache := caching.NewMetadataStore(time.Minute, logger)
	cfg := PipelineConfig{
		FadeFast:       40 * time.Millisecond,
		FadeSlow:       120 * time.Millisecond,
		PreloadTimeout: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc := NewDisplayService(ctx, store, &mockPreloader{}, &mockExtractor{}, cache,
		sink, alertSvc, cfg, logger, performance.NewTracker(100))
	return svc, store
}

func TestCreateDisplayNormalizesRawParams(t *testing.T) {
	svc, store := newServiceFixture(t)

	raw := display.Params{
		BackgroundColor:  "FFF",
		CaptionBgOpacity: 5.0,
	}
	rec, err := svc.CreateDisplay("kitchen", raw)
	if err != nil {
		t.Fatalf("CreateDisplay: %v", err)
	}

	if rec.Params.BackgroundColor != "#ffffff" {
		t.Errorf("backgroundColor = %q, want #ffffff", rec.Params.BackgroundColor)
	}
	if rec.Params.CaptionBgOpacity != 1 {
		t.Errorf("captionBgOpacity = %v, want 1", rec.Params.CaptionBgOpacity)
	}
	if rec.Params.ShowMode != display.ShowFit {
		t.Errorf("showMode default not applied: %q", rec.Params.ShowMode)
	}

	// The persisted row carries the normalized snapshot too.
	persisted, err := store.GetDisplay(rec.ID)
	if err != nil {
		t.Fatalf("GetDisplay: %v", err)
	}
	if persisted.Params.BackgroundColor != "#ffffff" || persisted.Params.CaptionBgOpacity != 1 {
		t.Errorf("persisted params not normalized: %+v", persisted.Params)
	}
}

func TestUpdateParamsNormalizesRawParams(t *testing.T) {
	svc, _ := newServiceFixture(t)

	rec, err := svc.CreateDisplay("hall", display.DefaultParams())
	if err != nil {
		t.Fatalf("CreateDisplay: %v", err)
	}

	raw := display.DefaultParams()
	raw.CaptionColor = "ABC"
	raw.CaptionBgOpacity = -2
	updated, err := svc.UpdateParams(rec.ID, raw)
	if err != nil {
		t.Fatalf("UpdateParams: %v", err)
	}

	if updated.Params.CaptionColor != "#aabbcc" {
		t.Errorf("captionColor = %q, want #aabbcc", updated.Params.CaptionColor)
	}
	if updated.Params.CaptionBgOpacity != 0 {
		t.Errorf("captionBgOpacity = %v, want 0", updated.Params.CaptionBgOpacity)
	}
}
