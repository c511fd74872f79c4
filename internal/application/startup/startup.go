// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gjbm2/screen-machine-sub001/internal/application/container"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
	"github.com/gjbm2/screen-machine-sub001/internal/presentation/http/server"
	"github.com/gjbm2/screen-machine-sub001/pkg/config"
)

// Initialize performs the complete startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("Initializing...")

	// Step 1: Channeled logger
	loggerConfig := logging.DefaultLoggerConfig()
	if os.Getenv("LOG_DIR") != "" {
		loggerConfig.OutputToFile = true
		loggerConfig.LogDirectory = os.Getenv("LOG_DIR")
	}
	logger, err := logging.NewChanneledLogger(loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.Startup().Info("Channeled logging initialized")

	// Step 2: Dependency injection container (state store, caches,
	// broadcaster, display service)
	logger.Startup().Info("Initializing dependency injection container...")
	appContainer, err := container.NewContainer(ctx, logger)
	if err != nil {
		return fmt.Errorf("container initialization failed: %w", err)
	}
	logger.Startup().Info("Dependency injection container created")

	// Step 3: Restore registered displays and start their pipelines
	logger.Startup().Info("Restoring display registry...")
	restoreStart := time.Now()
	if err := appContainer.DisplayService.RestoreFromStore(); err != nil {
		return fmt.Errorf("display restore failed: %w", err)
	}
	logger.Startup().Info("Display pipelines running",
		"displays", appContainer.DisplayService.Count(),
		"duration", time.Since(restoreStart))

	// Step 4: Background workers
	go appContainer.MonitorHub.Run()
	go runMetadataCachePurge(ctx, appContainer)
	logger.Startup().Info("Background workers started")

	// Step 5: HTTP server
	port := config.Port
	httpServer := server.New(port, appContainer)
	logger.Startup().Info("HTTP server initialized", "port", port)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"displays", appContainer.DisplayService.Count(),
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	// Stop pollers and pipelines first so nothing pushes into a closing server.
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Closing state store...")
	if err := appContainer.Close(); err != nil {
		logger.Shutdown().Error("Error closing state store", "error", err.Error())
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// runMetadataCachePurge evicts expired metadata entries on a slow tick.
func runMetadataCachePurge(ctx context.Context, c *container.Container) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.MetadataCache.Purge()
		}
	}
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
