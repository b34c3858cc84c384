package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/univalle-dev/asignacion-go/internal/buildinfo"
	"github.com/univalle-dev/asignacion-go/internal/config"
	"github.com/univalle-dev/asignacion-go/internal/harvest"
	"github.com/univalle-dev/asignacion-go/internal/ratelimit"
	"github.com/univalle-dev/asignacion-go/internal/scraper/univalle"
	"github.com/univalle-dev/asignacion-go/internal/storage"
)

// setupRoutes configures all HTTP routes
func setupRoutes(router *gin.Engine, a *api, db *storage.HotSwapDB, registry *prometheus.Registry, readiness *harvest.ReadinessState, limiter *ratelimit.KeyedLimiter, cfg *config.Config) {
	// Root endpoint - service identity
	rootHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "asignacion-api",
			"version": buildinfo.Version,
		})
	}
	router.GET("/", rootHandler)
	router.HEAD("/", rootHandler)

	// Health check endpoints
	// Liveness Probe - checks if the application is alive (minimal check)
	// This should NEVER check dependencies - only that the process is running
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/healthz", healthHandler)
	router.HEAD("/healthz", healthHandler)

	// Readiness Probe - ready once the initial cache load (snapshot
	// download or first scrape) finished, plus a live DB check
	readyHandler := func(c *gin.Context) {
		if !readiness.IsReady() {
			status := readiness.Status()
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": status.Reason,
			})
			return
		}

		if err := db.DB().Ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": err.Error(),
			})
			return
		}

		documents, _ := db.DB().CountDocuments(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"status":   "ready",
			"database": "connected",
			"portal":   univalle.ListingURL(cfg.PortalBaseURL),
			"cache": gin.H{
				"documents": documents,
			},
		})
	}
	router.GET("/ready", readyHandler)
	router.HEAD("/ready", readyHandler)

	// Query API
	v1 := router.Group("/api/v1")
	v1.Use(rateLimitMiddleware(limiter))
	{
		v1.GET("/periodos", a.handlePeriodos)
		v1.GET("/docentes/:cedula", a.handleDocente)
		v1.GET("/docentes/:cedula/resumen", a.handleResumen)
		v1.GET("/buscar", a.handleBuscar)
		v1.GET("/runs", a.handleRuns)
	}

	// Prometheus metrics endpoint
	router.GET("/metrics",
		metricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
}
