package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/alerts"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/caching"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/messaging"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/metadata"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/performance"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/persistence/state"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/polling"
)

// managedDisplay bundles everything running on behalf of one display.
type managedDisplay struct {
	record     *display.Record
	pipeline   *Pipeline
	poller     *polling.Poller
	redirector *DebugRedirector
	cancel     context.CancelFunc
}

// DisplayService owns the display registry: it creates, configures and tears
// down one pipeline (plus poller and debug redirector) per display.
type DisplayService struct {
	store       *state.Store
	preloader   Preloader
	extractor   metadata.Extractor
	metaCache   *caching.MetadataStore
	broadcaster messaging.Broadcaster
	alerts      *alerts.Service
	cfg         PipelineConfig
	logger      *logging.ChanneledLogger
	perf        *performance.Tracker

	mu       sync.RWMutex
	displays map[string]*managedDisplay
	baseCtx  context.Context
	started  time.Time
}

// NewDisplayService wires the service. Run-time work starts per display, not
// here.
func NewDisplayService(
	ctx context.Context,
	store *state.Store,
	preloader Preloader,
	extractor metadata.Extractor,
	metaCache *caching.MetadataStore,
	broadcaster messaging.Broadcaster,
	alertSvc *alerts.Service,
	cfg PipelineConfig,
	logger *logging.ChanneledLogger,
	perf *performance.Tracker,
) *DisplayService {
	return &DisplayService{
		store:       store,
		preloader:   preloader,
		extractor:   extractor,
		metaCache:   metaCache,
		broadcaster: broadcaster,
		alerts:      alertSvc,
		cfg:         cfg,
		logger:      logger,
		perf:        perf,
		displays:    make(map[string]*managedDisplay),
		baseCtx:     ctx,
		started:     time.Now(),
	}
}

// RestoreFromStore starts pipelines for every display already registered in
// the state database. Called once during startup.
func (s *DisplayService) RestoreFromStore() error {
	records, err := s.store.ListDisplays()
	if err != nil {
		return fmt.Errorf("failed to restore displays: %w", err)
	}
	for _, rec := range records {
		s.startDisplay(rec)
	}
	s.logger.Startup().Info("Displays restored", "count", len(records))
	return nil
}

// CreateDisplay registers a new display and starts its pipeline.
func (s *DisplayService) CreateDisplay(name string, params display.Params) (*display.Record, error) {
	params = params.Normalize()
	rec := &display.Record{
		ID:      ulid.Make().String(),
		Name:    name,
		Params:  params,
		Created: time.Now().UTC(),
	}
	if err := s.store.CreateDisplay(rec); err != nil {
		return nil, err
	}
	s.startDisplay(rec)
	s.logger.Display().Info("Display created", "displayId", rec.ID, "name", name)
	return rec, nil
}

func (s *DisplayService) startDisplay(rec *display.Record) {
	ctx, cancel := context.WithCancel(s.baseCtx)

	pipe := NewPipeline(rec.ID, rec.Params, s.preloader, s.extractor, s.metaCache,
		s.broadcaster, s.alerts, s.cfg, s.logger, s.perf)

	interval := time.Duration(rec.Params.RefreshInterval) * time.Second
	poller := polling.New(rec.ID, rec.Params.Output, interval, s.logger)

	md := &managedDisplay{
		record:     rec,
		pipeline:   pipe,
		poller:     poller,
		redirector: NewDebugRedirector(rec.ID, s.store, s.logger),
		cancel:     cancel,
	}

	s.mu.Lock()
	s.displays[rec.ID] = md
	s.mu.Unlock()

	go pipe.Run(ctx)
	go poller.Run(ctx)
	go func() {
		for candidate := range poller.Results() {
			pipe.Load(candidate.URL)
		}
	}()
}

func (s *DisplayService) get(id string) (*managedDisplay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.displays[id]
	if !ok {
		return nil, state.ErrNotFound
	}
	return md, nil
}

// GetDisplay returns the registry record for one display.
func (s *DisplayService) GetDisplay(id string) (*display.Record, error) {
	md, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return md.record, nil
}

// ListDisplays returns all registered displays.
func (s *DisplayService) ListDisplays() []*display.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]*display.Record, 0, len(s.displays))
	for _, md := range s.displays {
		records = append(records, md.record)
	}
	return records
}

// GetState returns the display's current render state.
func (s *DisplayService) GetState(id string) (*display.RenderState, error) {
	md, err := s.get(id)
	if err != nil {
		return nil, err
	}
	snap := md.pipeline.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("display %s pipeline is not responding", id)
	}
	return snap, nil
}

// UpdateParams replaces a display's params, persists the snapshot, and
// restarts its poller when the source or interval changed.
func (s *DisplayService) UpdateParams(id string, params display.Params) (*display.Record, error) {
	md, err := s.get(id)
	if err != nil {
		return nil, err
	}
	params = params.Normalize()
	if err := s.store.UpdateDisplayParams(id, params); err != nil {
		return nil, err
	}

	sourceChanged := params.Output != md.record.Params.Output ||
		params.RefreshInterval != md.record.Params.RefreshInterval

	now := time.Now().UTC()
	md.record.Params = params
	md.record.Changed = &now
	md.pipeline.SetParams(params)

	if sourceChanged {
		s.restartDisplay(md)
	}
	s.logger.Display().Info("Display params updated", "displayId", id, "sourceChanged", sourceChanged)
	return md.record, nil
}

// restartDisplay tears down and relaunches a display's goroutines with the
// current record. The pipeline restarts clean; the next poll repaints it.
func (s *DisplayService) restartDisplay(md *managedDisplay) {
	md.cancel()
	s.mu.Lock()
	delete(s.displays, md.record.ID)
	s.mu.Unlock()
	s.startDisplay(md.record)
}

// DeleteDisplay stops and removes a display.
func (s *DisplayService) DeleteDisplay(id string) error {
	md, err := s.get(id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDisplay(id); err != nil {
		return err
	}
	md.cancel()
	s.mu.Lock()
	delete(s.displays, id)
	s.mu.Unlock()
	s.logger.Display().Info("Display deleted", "displayId", id)
	return nil
}

// Next forces an immediate poll for a display.
func (s *DisplayService) Next(id string) error {
	md, err := s.get(id)
	if err != nil {
		return err
	}
	md.poller.Trigger()
	return nil
}

// Resize reports a new container size for a display.
func (s *DisplayService) Resize(id string, size display.Size) error {
	md, err := s.get(id)
	if err != nil {
		return err
	}
	md.pipeline.Resize(size)
	return nil
}

// Route answers whether a display should open in debug mode or show images.
func (s *DisplayService) Route(id string) (string, error) {
	md, err := s.get(id)
	if err != nil {
		return "", err
	}
	params := md.record.Params
	if md.redirector.Evaluate(params.DebugMode, params.Output) || params.DebugMode {
		return "debug", nil
	}
	return "display", nil
}

// DisplayStatuses implements messaging.StatusSource for the monitor hub.
func (s *DisplayService) DisplayStatuses() []messaging.DisplayStatus {
	s.mu.RLock()
	managed := make([]*managedDisplay, 0, len(s.displays))
	for _, md := range s.displays {
		managed = append(managed, md)
	}
	s.mu.RUnlock()

	statuses := make([]messaging.DisplayStatus, 0, len(managed))
	for _, md := range managed {
		snap := md.pipeline.Snapshot()
		status := messaging.DisplayStatus{
			DisplayID: md.record.ID,
			Name:      md.record.Name,
			Viewers:   s.broadcaster.GetConnectionCount(md.record.ID),
		}
		if snap != nil {
			status.CurrentURL = snap.URL
			status.IsTransitioning = snap.IsTransitioning
			status.LastChange = snap.Timestamp
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Uptime implements messaging.StatusSource.
func (s *DisplayService) Uptime() time.Duration {
	return time.Since(s.started)
}

// Count reports the number of managed displays.
func (s *DisplayService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.displays)
}
