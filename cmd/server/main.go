// Package main is the query API server: cached faculty documents with
// on-demand portal scrapes on cache misses, period discovery, BM25
// search over the corpus and harvest run history. The cache arrives
// mostly by snapshot from the batch harvester; on-demand scrapes are
// recorded to the delta log so the next snapshot carries them too.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/univalle-dev/asignacion-go/internal/archive"
	"github.com/univalle-dev/asignacion-go/internal/buildinfo"
	"github.com/univalle-dev/asignacion-go/internal/config"
	"github.com/univalle-dev/asignacion-go/internal/delta"
	"github.com/univalle-dev/asignacion-go/internal/harvest"
	"github.com/univalle-dev/asignacion-go/internal/logger"
	"github.com/univalle-dev/asignacion-go/internal/maintenance"
	"github.com/univalle-dev/asignacion-go/internal/metrics"
	"github.com/univalle-dev/asignacion-go/internal/ratelimit"
	"github.com/univalle-dev/asignacion-go/internal/scraper"
	"github.com/univalle-dev/asignacion-go/internal/search"
	"github.com/univalle-dev/asignacion-go/internal/sentry"
	"github.com/univalle-dev/asignacion-go/internal/snapshot"
	"github.com/univalle-dev/asignacion-go/internal/storage"
)

// readinessTimeout bounds the initial cache load: a server whose
// snapshot store is unreachable still starts serving (cold) after this.
const readinessTimeout = 5 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, logShutdown := logger.NewWithOptions(logger.Options{
		Level:               cfg.LogLevel,
		BetterstackToken:    cfg.BetterstackToken,
		BetterstackEndpoint: cfg.BetterstackEndpoint,
	})
	log.WithField("version", buildinfo.Version).Info("Starting asignacion API server")

	// Initialize error tracking
	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Version,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Failed to initialize error tracking")
	}
	defer sentry.Flush(2 * time.Second)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	hotDB, err := storage.NewHotSwapDB(startCtx, cfg.SQLitePath(), cfg.CacheTTL)
	startCancel()
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	defer func() { _ = hotDB.Close() }()
	log.WithField("path", cfg.SQLitePath()).
		WithField("cache_ttl", cfg.CacheTTL).
		Info("Database connected")

	// Create Prometheus registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewBuildInfoCollector())

	m := metrics.New(registry)
	hotDB.DB().SetMetrics(m)
	log.Info("Metrics initialized")

	scraperClient := scraper.NewClient(cfg.ScraperTimeout, cfg.ScraperMaxRetries, cfg.RetryDelayMin, cfg.RetryDelayMax)
	scraperClient.SetMetrics(m)
	index := search.NewIndex(log)
	readiness := harvest.NewReadinessState(readinessTimeout)

	// Background job context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Archive wiring: snapshot transport, delta log, schedule state.
	var (
		snapMgr    *snapshot.Manager
		deltaLog   *delta.Log
		schedStore *maintenance.ScheduleStore
	)
	if cfg.Archive.Enabled {
		arcClient, err := archive.New(ctx, archive.Config{
			AccountID:       cfg.Archive.AccountID,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
			Bucket:          cfg.Archive.Bucket,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to create archive client")
		}

		deltaLog, err = delta.NewLog(arcClient, cfg.Archive.DeltaPrefix, uuid.NewString())
		if err != nil {
			log.WithError(err).Fatal("Failed to create delta log")
		}

		snapMgr = snapshot.New(arcClient, snapshot.Config{
			SnapshotKey:  cfg.Archive.SnapshotKey,
			LockKey:      cfg.Archive.LockKey,
			LockTTL:      cfg.Archive.LockTTL,
			PollInterval: cfg.Archive.PollInterval,
			TempDir:      cfg.DataDir,
			OnSwap: func() {
				// A new snapshot replaced the DB under us; the index
				// must follow.
				if err := index.RebuildFromDB(context.Background(), hotDB.DB()); err != nil {
					log.WithError(err).Warn("Failed to rebuild search index after snapshot swap")
				}
			},
		})

		schedStore, err = maintenance.NewScheduleStore(arcClient, cfg.Archive.StateKey, 30*time.Second)
		if err != nil {
			log.WithError(err).Fatal("Failed to open schedule state")
		}
		log.Info("Archive transport initialized")
	}

	// Initial cache load: newest snapshot if one exists, then the
	// search index. Runs in the background so startup stays fast;
	// /ready flips once this finishes.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("Panic during initial cache load")
			}
		}()

		if snapMgr != nil {
			dbPath, etag, err := snapMgr.Download(ctx, cfg.DataDir)
			switch {
			case err == nil:
				if err := hotDB.Swap(ctx, dbPath); err != nil {
					log.WithError(err).Warn("Failed to swap in downloaded snapshot")
				} else {
					snapMgr.SetCurrentETag(etag)
					hotDB.DB().SetMetrics(m)
					log.WithField("etag", etag).Info("Snapshot cache loaded")
				}
			case errors.Is(err, snapshot.ErrNotFound):
				log.Info("No snapshot published yet, starting with local cache")
			default:
				log.WithError(err).Warn("Snapshot download failed, starting with local cache")
			}
		}

		if err := index.RebuildFromDB(ctx, hotDB.DB()); err != nil {
			log.WithError(err).Warn("Failed to build search index")
		} else {
			log.WithField("documents", index.Count()).Info("Search index built")
		}
		readiness.MarkReady()
	}()

	if snapMgr != nil {
		snapMgr.StartPolling(ctx, hotDB, cfg.DataDir)
		defer snapMgr.StopPolling()
	}

	// Per-client API rate limiting
	limiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "client",
		Burst:         cfg.APIRateBurst,
		RefillRate:    cfg.APIRateRefillPerSec,
		DailyLimit:    cfg.APIRateDailyLimit,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})
	defer limiter.Stop()

	var recorder delta.Recorder
	if deltaLog != nil {
		recorder = deltaLog
	}
	apiHandler := newAPI(cfg, hotDB, scraperClient, index, recorder, m, log)

	// Set Gin mode based on log level
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(log))

	setupRoutes(router, apiHandler, hotDB, registry, readiness, limiter, cfg)

	// HTTP server timeouts sized for on-demand portal scrapes;
	// see internal/config/timeouts.go
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.APIHTTPRead,
		WriteTimeout: config.APIHTTPWrite,
		IdleTimeout:  config.APIHTTPIdle,
	}

	var wg sync.WaitGroup

	// Cache cleanup goroutine (every 12 hours)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("Panic in cache cleanup goroutine")
			}
		}()
		cleanupExpiredCache(ctx, hotDB, cfg.CacheTTL, m, log)
	}()

	// Cache size metrics updater goroutine (every 5 minutes)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("Panic in cache metrics goroutine")
			}
		}()
		updateCacheSizeMetrics(ctx, hotDB, index, limiter, m, log)
	}()

	// Scheduled cache refresh (optional, needs the archive for the
	// leader lock and schedule state)
	if cfg.HarvestScheduleHour >= 0 && snapMgr != nil && schedStore != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithField("panic", r).Error("Panic in scheduled harvest goroutine")
				}
			}()
			scheduledHarvest(ctx, cfg, hotDB, scraperClient, index, snapMgr, deltaLog, schedStore, m, log)
		}()
		log.WithField("hour", cfg.HarvestScheduleHour).Info("Scheduled cache refresh enabled")
	}

	// Start server in goroutine
	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Stop background goroutines
	cancel()

	goDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(goDone)
	}()

	select {
	case <-goDone:
		log.Info("All background goroutines stopped")
	case <-time.After(5 * time.Second):
		log.Warn("Timeout waiting for goroutines to stop")
	}

	// Shutdown server gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	// Close database connection
	if err := hotDB.Close(); err != nil {
		log.WithError(err).Error("Failed to close database")
	}

	// Flush buffered remote log records
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	_ = logShutdown(flushCtx)

	log.Info("Server stopped")
}
