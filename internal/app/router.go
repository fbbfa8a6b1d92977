package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"fleet/internal/handler"
	"fleet/internal/logger"
	"fleet/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	DispatchHandler *handler.DispatchHandler
	FleetHandler    *handler.FleetHandler
	TrackingHandler *handler.TrackingHandler
	RedisClient     *redis.Client           // Optional: enables idempotent POSTs
	RateLimiter     *middleware.RateLimiter // Optional
	Gatherer        prometheus.Gatherer     // Optional: defaults to the global registry
	NewRelicApp     *newrelic.Application   // Optional
	Logger          logger.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(log))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// Health and metrics bypass rate limiting.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API v1 routes.
	v1 := router.Group("/v1")
	if deps.RateLimiter != nil {
		v1.Use(deps.RateLimiter.Middleware())
	}
	if deps.RedisClient != nil {
		v1.Use(middleware.Idempotency(deps.RedisClient, log))
	}
	{
		// Dispatch routes.
		dispatches := v1.Group("/dispatches")
		{
			dispatches.POST("", deps.DispatchHandler.CreateDispatch)
			dispatches.GET("", deps.DispatchHandler.ListDispatches)
			dispatches.POST("/optimize", deps.DispatchHandler.Optimize)
			dispatches.POST("/route", deps.DispatchHandler.OptimizeRoute)
			dispatches.GET("/statistics", deps.DispatchHandler.Statistics)
			dispatches.GET("/:id", deps.DispatchHandler.GetDispatch)
			dispatches.POST("/:id/transitions", deps.DispatchHandler.Transition)
		}

		// Fleet routes.
		fleet := v1.Group("/fleet")
		{
			fleet.GET("/available-vehicles", deps.FleetHandler.AvailableVehicles)
			fleet.GET("/available-orders", deps.FleetHandler.AvailableOrders)
			fleet.POST("/match", deps.FleetHandler.Match)
		}

		// Tracking routes.
		tracking := v1.Group("/tracking")
		{
			tracking.POST("/batch", deps.TrackingHandler.IngestBatch)
			tracking.GET("/shipments/:id/alerts", deps.TrackingHandler.ListAlerts)
			tracking.GET("/shipments/:id/logs", deps.TrackingHandler.ListLogs)
		}
	}

	return router
}
