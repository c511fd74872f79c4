// Package services contains the application service layer orchestrating
// display pipelines, routing, and debug mode handling.
package services

import (
	"context"
	"time"

	"github.com/gjbm2/screen-machine-sub001/internal/domain/caption"
	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
	"github.com/gjbm2/screen-machine-sub001/internal/domain/layout"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/alerts"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/caching"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/metadata"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/performance"
	"github.com/gjbm2/screen-machine-sub001/pkg/config"
)

// Preloader fetches an image far enough to know it decodes and what its
// intrinsic size is.
type Preloader interface {
	Preload(ctx context.Context, url string) (display.Size, error)
}

// Emitter receives render state snapshots as the pipeline produces them.
type Emitter interface {
	BroadcastRenderState(state *display.RenderState)
}

// PipelineConfig carries the tunables a pipeline needs.
type PipelineConfig struct {
	FadeFast       time.Duration
	FadeSlow       time.Duration
	PreloadTimeout time.Duration
}

// pipeline messages; every async result carries the sequence that issued it
// so stale completions can be dropped.
type loadMsg struct {
	url string
}

type paramsMsg struct {
	params display.Params
}

type resizeMsg struct {
	size display.Size
}

type snapshotMsg struct {
	reply chan *display.RenderState
}

type preloadDoneMsg struct {
	seq  int64
	size display.Size
	err  error
}

type metadataDoneMsg struct {
	seq  int64
	meta *display.Metadata
	err  error
}

type fadeDoneMsg struct {
	seq int64
}

// Pipeline owns all rendering state for one display. A single goroutine
// consumes commands and async completions in arrival order, so no state is
// ever touched concurrently.
type Pipeline struct {
	displayID string
	cmds      chan any

	emitter   Emitter
	preloader Preloader
	extractor metadata.Extractor
	metaCache *caching.MetadataStore
	alerts    *alerts.Service
	logger    *logging.ChanneledLogger
	perf      *performance.Tracker
	cfg       PipelineConfig

	// loop-owned state, never accessed outside Run
	params        display.Params
	seq           int64
	metaSeq       int64
	currentURL    string
	previousURL   string
	renderKey     int64
	transitioning bool
	pendingURL    string
	pendingMeta   *display.Metadata
	currentMeta   *display.Metadata
	containerSize display.Size
	intrinsic     display.Size
	prevIntrinsic display.Size
}

// NewPipeline builds a pipeline for one display. Run must be started before
// commands have any effect.
func NewPipeline(
	displayID string,
	params display.Params,
	preloader Preloader,
	extractor metadata.Extractor,
	metaCache *caching.MetadataStore,
	emitter Emitter,
	alertSvc *alerts.Service,
	cfg PipelineConfig,
	logger *logging.ChanneledLogger,
	perf *performance.Tracker,
) *Pipeline {
	params = params.Normalize()
	return &Pipeline{
		displayID: displayID,
		cmds:      make(chan any, 16),
		emitter:   emitter,
		preloader: preloader,
		extractor: extractor,
		metaCache: metaCache,
		alerts:    alertSvc,
		logger:    logger,
		perf:      perf,
		cfg:       cfg,
		params:    params,
		// Assumed until the surface reports its real size via Resize.
		containerSize: display.Size{
			Width:  config.DefaultContainerWidth,
			Height: config.DefaultContainerHeight,
		},
	}
}

// Load asks the pipeline to show a new image. Loading the URL already on
// screen, or already preloading, is a no-op.
func (p *Pipeline) Load(url string) {
	p.cmds <- loadMsg{url: url}
}

// SetParams replaces the display parameters.
func (p *Pipeline) SetParams(params display.Params) {
	p.cmds <- paramsMsg{params: params.Normalize()}
}

// Resize reports a new container size from the frontend.
func (p *Pipeline) Resize(size display.Size) {
	p.cmds <- resizeMsg{size: size}
}

// Snapshot returns the current render state, or nil when the pipeline has
// stopped.
func (p *Pipeline) Snapshot() *display.RenderState {
	reply := make(chan *display.RenderState, 1)
	select {
	case p.cmds <- snapshotMsg{reply: reply}:
	case <-time.After(2 * time.Second):
		return nil
	}
	select {
	case state := <-reply:
		return state
	case <-time.After(2 * time.Second):
		return nil
	}
}

// CurrentURL reports the image most recently committed, for monitoring.
func (p *Pipeline) CurrentURL() string {
	state := p.Snapshot()
	if state == nil {
		return ""
	}
	return state.URL
}

// IsTransitioning reports whether a fade is in flight, for monitoring.
func (p *Pipeline) IsTransitioning() bool {
	state := p.Snapshot()
	return state != nil && state.IsTransitioning
}

// Run consumes commands until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	p.logger.Display().Info("Pipeline started", "displayId", p.displayID)
	defer p.logger.Display().Info("Pipeline stopped", "displayId", p.displayID)

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-p.cmds:
			switch msg := cmd.(type) {
			case loadMsg:
				p.handleLoad(ctx, msg)
			case paramsMsg:
				p.handleParams(ctx, msg.params)
			case resizeMsg:
				p.handleResize(msg.size)
			case snapshotMsg:
				msg.reply <- p.buildState()
			case preloadDoneMsg:
				p.handlePreloadDone(ctx, msg)
			case metadataDoneMsg:
				p.handleMetadataDone(msg)
			case fadeDoneMsg:
				p.handleFadeDone(msg)
			}
		}
	}
}

// =============================================================================
// Command handling
// =============================================================================

func (p *Pipeline) handleLoad(ctx context.Context, msg loadMsg) {
	if msg.url == "" {
		return
	}
	// Unconditional: a re-observation of the current image, forced or not,
	// must not bump the render key or restart a fade to itself.
	if msg.url == p.currentURL || msg.url == p.pendingURL {
		return
	}

	// A newer load supersedes any fade in flight. The superseded image is
	// treated as fully shown first so its caption is not lost and the
	// transitioning flag cannot stick.
	if p.transitioning {
		p.settleTransition()
	}

	p.seq++
	seq := p.seq

	marker := p.perf.StartOperation("image_load", p.displayID)
	marker.AddMetadata("url", msg.url)

	duration := p.transitionDuration()
	if duration == 0 || p.currentURL == "" {
		// Cut, or nothing on screen yet: swap immediately.
		p.commitSwap(msg.url, display.Size{})
		p.currentMeta = nil
		p.emit()
		p.startMetadataFetch(ctx, msg.url)
		marker.SetSuccess(true)
		marker.Complete()
		return
	}

	p.logger.Transition().Debug("Preloading for fade",
		"displayId", p.displayID, "url", msg.url, "seq", seq)

	go func() {
		pctx, cancel := context.WithTimeout(ctx, p.cfg.PreloadTimeout)
		defer cancel()
		size, err := p.preloader.Preload(pctx, msg.url)
		marker.SetSuccess(err == nil)
		if err != nil {
			marker.SetError(err)
		}
		marker.Complete()
		p.post(ctx, preloadDoneMsg{seq: seq, size: size, err: err})
	}()

	// currentURL only moves when the image is actually committed, so the
	// snapshot stays truthful during the preload.
	p.pendingURL = msg.url
}

func (p *Pipeline) handlePreloadDone(ctx context.Context, msg preloadDoneMsg) {
	if msg.seq != p.seq {
		p.logger.Transition().Debug("Dropping stale preload result",
			"displayId", p.displayID, "seq", msg.seq, "currentSeq", p.seq)
		return
	}
	url := p.pendingURL
	p.pendingURL = ""

	if msg.err != nil {
		// The image may still render in the frontend even though we could
		// not decode it here; show it without animation rather than going
		// stale.
		p.logger.Transition().Warn("Preload failed, swapping without fade",
			"displayId", p.displayID, "url", url, "error", msg.err.Error())
		p.alerts.RecordFailure(p.displayID, url, msg.err)
		p.commitSwap(url, display.Size{})
		p.currentMeta = nil
		p.emit()
		p.startMetadataFetch(ctx, url)
		return
	}

	p.alerts.RecordSuccess(p.displayID)
	// currentMeta is left untouched: the outgoing image keeps its caption
	// for the whole cross-fade.
	p.commitSwap(url, msg.size)
	p.transitioning = true
	p.emit()
	p.startMetadataFetch(ctx, url)

	duration := p.transitionDuration()
	seq := msg.seq
	time.AfterFunc(duration, func() {
		p.post(ctx, fadeDoneMsg{seq: seq})
	})
}

func (p *Pipeline) handleMetadataDone(msg metadataDoneMsg) {
	if msg.seq != p.metaSeq {
		p.logger.Metadata().Debug("Dropping stale metadata result",
			"displayId", p.displayID, "seq", msg.seq, "currentSeq", p.metaSeq)
		return
	}
	if msg.err != nil {
		p.logger.Metadata().Warn("Metadata fetch failed",
			"displayId", p.displayID, "error", msg.err.Error())
		msg.meta = display.NewMetadata()
	}

	if p.transitioning {
		// Hold the caption until the fade completes so the old image keeps
		// its own caption for the whole cross-fade.
		p.pendingMeta = msg.meta
		return
	}
	p.currentMeta = msg.meta
	p.emit()
}

func (p *Pipeline) handleFadeDone(msg fadeDoneMsg) {
	if msg.seq != p.seq || !p.transitioning {
		return
	}
	p.settleTransition()
	p.emit()
}

func (p *Pipeline) handleParams(ctx context.Context, params display.Params) {
	dataChanged := params.Data != p.params.Data || params.Caption != p.params.Caption
	p.params = params
	// The load sequence is left alone: a caption refetch must not
	// invalidate an in-flight preload or a pending fade-done timer.
	if dataChanged && p.currentURL != "" && p.params.CaptionUsesMetadata() {
		p.startMetadataFetch(ctx, p.currentURL)
	}
	p.emit()
}

func (p *Pipeline) handleResize(size display.Size) {
	if size.IsZero() || size == p.containerSize {
		return
	}
	p.containerSize = size
	p.logger.Display().Debug("Container resized",
		"displayId", p.displayID, "width", size.Width, "height", size.Height)
	p.emit()
}

// =============================================================================
// State transitions
// =============================================================================

func (p *Pipeline) commitSwap(url string, intrinsic display.Size) {
	p.previousURL = p.currentURL
	p.prevIntrinsic = p.intrinsic
	p.currentURL = url
	p.intrinsic = intrinsic
	p.renderKey++
	p.transitioning = false
	p.pendingMeta = nil
	p.pendingURL = ""
}

// settleTransition finishes the current fade: the new image becomes the
// steady-state image and its held caption is committed.
func (p *Pipeline) settleTransition() {
	p.transitioning = false
	if p.pendingMeta != nil {
		p.currentMeta = p.pendingMeta
		p.pendingMeta = nil
	}
}

// startMetadataFetch kicks off metadata extraction for url. Each fetch gets
// its own token so a caption refetch never invalidates the load sequence,
// and a newer fetch always wins over a slower older one.
func (p *Pipeline) startMetadataFetch(ctx context.Context, url string) {
	if !p.params.CaptionUsesMetadata() {
		return
	}

	p.metaSeq++
	seq := p.metaSeq

	tag := p.params.Data
	if meta, ok := p.metaCache.Get(url, tag); ok {
		// Handled inline: posting to our own channel from the loop
		// goroutine could deadlock against a full buffer.
		p.handleMetadataDone(metadataDoneMsg{seq: seq, meta: meta})
		return
	}

	go func() {
		meta, err := p.extractor.Extract(ctx, url, tag)
		if err == nil {
			p.metaCache.Set(url, tag, meta)
		}
		p.post(ctx, metadataDoneMsg{seq: seq, meta: meta, err: err})
	}()
}

func (p *Pipeline) transitionDuration() time.Duration {
	switch p.params.Transition {
	case display.TransitionFadeFast:
		return p.cfg.FadeFast
	case display.TransitionFadeSlow:
		return p.cfg.FadeSlow
	default:
		return 0
	}
}

// post delivers an async completion back to the loop without blocking the
// producer forever if the pipeline is shutting down.
func (p *Pipeline) post(ctx context.Context, msg any) {
	select {
	case p.cmds <- msg:
	case <-ctx.Done():
	}
}

// =============================================================================
// Render state assembly
// =============================================================================

func (p *Pipeline) buildState() *display.RenderState {
	state := &display.RenderState{
		DisplayID:       p.displayID,
		Sequence:        p.seq,
		URL:             p.currentURL,
		PreviousURL:     p.previousURL,
		RenderKey:       p.renderKey,
		IsTransitioning: p.transitioning,
		BackgroundColor: p.params.BackgroundColor,
		Caption:         p.buildCaption(),
		Timestamp:       time.Now().UTC(),
	}

	style := layout.ComputeImageStyle(p.params.ShowMode, p.params.Position, p.containerSize, p.intrinsic)
	if p.transitioning {
		old := layout.ComputeImageStyle(p.params.ShowMode, p.params.Position, p.containerSize, p.prevIntrinsic)
		state.OldStyle = &old
		state.NewStyle = &style
		state.DurationSeconds = p.transitionDuration().Seconds()
	} else {
		state.Style = &style
	}
	return state
}

func (p *Pipeline) buildCaption() *display.CaptionSpec {
	if p.params.Caption == "" {
		return nil
	}

	text := p.params.Caption
	if p.params.CaptionUsesMetadata() {
		if p.currentMeta == nil {
			// Metadata not yet available; hold the caption back rather
			// than flashing raw placeholders.
			return nil
		}
		text = caption.Process(p.params.Caption, p.currentMeta)
	}
	if text == "" {
		return nil
	}

	return &display.CaptionSpec{
		Text:      text,
		Position:  p.params.CaptionPosition,
		FontSize:  layout.ComputeScaledFontSize(p.params.CaptionSize, p.containerSize.Width),
		Color:     p.params.CaptionColor,
		Font:      p.params.CaptionFont,
		BgColor:   p.params.CaptionBgColor,
		BgOpacity: p.params.CaptionBgOpacity,
	}
}

func (p *Pipeline) emit() {
	p.emitter.BroadcastRenderState(p.buildState())
}
