// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/gjbm2/screen-machine-sub001/internal/application/container"
	"github.com/gjbm2/screen-machine-sub001/internal/presentation/http/handlers"
	"github.com/gjbm2/screen-machine-sub001/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Initialize handlers
	displayHandlers := handlers.NewDisplayHandlers(container.DisplayService, container.Logger, container.PerfTracker)
	streamHandlers := handlers.NewStreamHandlers(container.DisplayService, container.Broadcaster, container.MonitorHub, container.Logger, container.PerfTracker)
	systemHandlers := handlers.NewSystemHandlers(container)

	r.GET("/health", systemHandlers.GetHealth)

	// Websocket fleet monitoring stays at top level, outside the API group.
	r.GET("/ws/monitor", streamHandlers.GetMonitorWS)

	api := r.Group("/api/v1")
	{
		api.GET("/health", systemHandlers.GetHealth)

		displays := api.Group("/displays")
		{
			displays.POST("", displayHandlers.PostDisplay)
			displays.GET("", displayHandlers.GetDisplays)
			displays.GET("/:id", displayHandlers.GetDisplay)
			displays.DELETE("/:id", displayHandlers.DeleteDisplay)
			displays.PUT("/:id/params", displayHandlers.PutDisplayParams)
			displays.GET("/:id/state", displayHandlers.GetDisplayState)
			displays.GET("/:id/route", displayHandlers.GetDisplayRoute)
			displays.POST("/:id/next", displayHandlers.PostDisplayNext)
			displays.POST("/:id/resize", displayHandlers.PostDisplayResize)
			displays.GET("/:id/sse", streamHandlers.GetDisplaySSE)
			displays.GET("/:id/ws", streamHandlers.GetDisplayWS)
		}

		system := api.Group("/system")
		{
			system.GET("/stats", systemHandlers.GetStats)
			system.GET("/logs/levels", systemHandlers.GetLogLevels)
			system.POST("/logs/levels", systemHandlers.SetLogLevel)
		}
	}

	return r
}
