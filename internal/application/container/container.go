// Package container provides dependency injection for all singleton services
package container

import (
	"context"

	"github.com/gjbm2/screen-machine-sub001/internal/application/services"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/alerts"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/caching"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/media"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/messaging"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/metadata"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/performance"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/persistence/state"
	"github.com/gjbm2/screen-machine-sub001/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	DisplayService *services.DisplayService
	AlertService   *alerts.Service

	// Infrastructure Dependencies
	StateStore    *state.Store
	MetadataCache *caching.MetadataStore
	Broadcaster   *messaging.SSEBroadcaster
	MonitorHub    *messaging.MonitorHub
	Logger        *logging.ChanneledLogger
	PerfTracker   *performance.Tracker
}

// NewContainer creates and wires all singleton services
func NewContainer(ctx context.Context, logger *logging.ChanneledLogger) (*Container, error) {
	perfTracker := performance.NewTracker(1000)

	stateStore, err := state.Open(config.StateDBPath, logger)
	if err != nil {
		return nil, err
	}

	broadcaster := messaging.NewSSEBroadcaster(logger)
	metaCache := caching.NewMetadataStore(config.MetadataCacheTTL, logger)
	preloader := media.NewPreloader(config.PreloadTimeout, config.MaxPreloadBytes, logger)
	extractor := metadata.NewHTTPExtractor(config.MetadataServiceURL, config.MetadataTimeout, int64(config.MaxPreloadBytes), logger)

	var sender alerts.EmailSender
	if config.AlertEmailTo != "" {
		sender, err = alerts.NewEmailSender(config.AlertEmailTo)
		if err != nil {
			logger.Startup().Warn("Email alerting disabled", "reason", err.Error())
			sender = nil
		}
	}
	alertService := alerts.NewService(broadcaster, sender, config.AlertFailureThreshold, logger)

	pipelineCfg := services.PipelineConfig{
		FadeFast:       config.FadeFastDuration,
		FadeSlow:       config.FadeSlowDuration,
		PreloadTimeout: config.PreloadTimeout,
	}

	displayService := services.NewDisplayService(ctx, stateStore, preloader, extractor,
		metaCache, broadcaster, alertService, pipelineCfg, logger, perfTracker)

	return &Container{
		DisplayService: displayService,
		AlertService:   alertService,
		StateStore:     stateStore,
		MetadataCache:  metaCache,
		Broadcaster:    broadcaster,
		MonitorHub:     messaging.NewMonitorHub(displayService, logger),
		Logger:         logger,
		PerfTracker:    perfTracker,
	}, nil
}

// Close releases long-lived resources.
func (c *Container) Close() error {
	return c.StateStore.Close()
}
