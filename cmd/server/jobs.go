package main

import (
	"context"
	"time"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
	"github.com/univalle-dev/asignacion-go/internal/config"
	"github.com/univalle-dev/asignacion-go/internal/delta"
	"github.com/univalle-dev/asignacion-go/internal/harvest"
	"github.com/univalle-dev/asignacion-go/internal/logger"
	"github.com/univalle-dev/asignacion-go/internal/maintenance"
	"github.com/univalle-dev/asignacion-go/internal/metrics"
	"github.com/univalle-dev/asignacion-go/internal/ratelimit"
	"github.com/univalle-dev/asignacion-go/internal/scraper"
	"github.com/univalle-dev/asignacion-go/internal/scraper/univalle"
	"github.com/univalle-dev/asignacion-go/internal/search"
	"github.com/univalle-dev/asignacion-go/internal/sliceutil"
	"github.com/univalle-dev/asignacion-go/internal/snapshot"
	"github.com/univalle-dev/asignacion-go/internal/storage"
)

// minHarvestGap keeps the scheduled refresh from double-firing when
// several servers pass the CAS check in the same hour.
const minHarvestGap = 20 * time.Hour

// cleanupExpiredCache periodically removes expired cache entries from database
func cleanupExpiredCache(ctx context.Context, db *storage.HotSwapDB, ttl time.Duration, m *metrics.Metrics, log *logger.Logger) {
	// Run initial cleanup after configured delay to let server stabilize
	select {
	case <-ctx.Done():
		return
	case <-time.After(config.CacheCleanupInitialDelay):
		performCacheCleanup(ctx, db, ttl, m, log)
	}

	// Then run cleanup at configured interval
	ticker := time.NewTicker(config.CacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			performCacheCleanup(ctx, db, ttl, m, log)
		}
	}
}

// performCacheCleanup executes cache cleanup operation
func performCacheCleanup(ctx context.Context, db *storage.HotSwapDB, ttl time.Duration, m *metrics.Metrics, log *logger.Logger) {
	startTime := time.Now()
	log.Info("Starting cache cleanup...")

	var totalDeleted int64

	if deleted, err := db.DB().DeleteExpiredDocuments(ctx, ttl); err != nil {
		log.WithError(err).Error("Failed to cleanup expired documents")
	} else {
		totalDeleted += deleted
		count, _ := db.DB().CountDocuments(ctx)
		log.WithFields(map[string]any{
			"deleted":   deleted,
			"remaining": count,
		}).Debug("Documents cleanup complete")
	}

	if deleted, err := db.DB().PruneRunSummaries(ctx, 50); err != nil {
		log.WithError(err).Error("Failed to prune run summaries")
	} else {
		totalDeleted += deleted
	}

	// Run SQLite VACUUM to reclaim space (optional, may be slow)
	if _, err := db.DB().Writer().ExecContext(ctx, "VACUUM"); err != nil {
		log.WithError(err).Warn("Failed to vacuum database")
	} else {
		log.Debug("Database vacuumed successfully")
	}

	// Record job metrics
	if m != nil {
		m.RecordJob("cleanup", time.Since(startTime).Seconds())
	}

	log.WithField("total_deleted", totalDeleted).Info("Cache cleanup complete")
}

// updateCacheSizeMetrics periodically updates cache size gauge metrics
func updateCacheSizeMetrics(ctx context.Context, db *storage.HotSwapDB, index *search.Index, limiter *ratelimit.KeyedLimiter, m *metrics.Metrics, log *logger.Logger) {
	// Update metrics at configured interval
	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	// Run initial update immediately
	performCacheSizeUpdate(ctx, db, index, limiter, m, log)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			performCacheSizeUpdate(ctx, db, index, limiter, m, log)
		}
	}
}

// performCacheSizeUpdate updates cache size metrics
func performCacheSizeUpdate(ctx context.Context, db *storage.HotSwapDB, index *search.Index, limiter *ratelimit.KeyedLimiter, m *metrics.Metrics, log *logger.Logger) {
	if documentCount, err := db.DB().CountDocuments(ctx); err == nil {
		m.SetCacheSize("documents", documentCount)
	} else {
		log.WithError(err).Debug("Failed to count documents for metrics")
	}

	if index != nil && index.IsEnabled() {
		m.SetIndexSize("bm25", index.Count())
	}
	if limiter != nil {
		m.SetRateLimiterUsers(limiter.GetActiveCount())
	}
}

// scheduledHarvest refreshes the cached corpus once a day at the
// configured hour. The maintenance state CAS plus the snapshot leader
// lock guarantee at most one server runs the refresh; the result is
// snapshotted so the others pick it up by polling. Spreadsheet output
// stays the batch runner's job - this only keeps the API cache warm.
func scheduledHarvest(ctx context.Context, cfg *config.Config, db *storage.HotSwapDB, scraperClient *scraper.Client, index *search.Index, snapMgr *snapshot.Manager, deltaLog *delta.Log, store *maintenance.ScheduleStore, m *metrics.Metrics, log *logger.Logger) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), cfg.HarvestScheduleHour, 0, 0, 0, now.Location())
		if now.After(next) {
			next = next.Add(24 * time.Hour)
		}

		log.WithField("next_run", next.Format("2006-01-02 15:04:05")).
			Debug("Scheduled cache refresh planned")

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
			performScheduledHarvest(ctx, cfg, db, scraperClient, index, snapMgr, deltaLog, store, m, log)
		}
	}
}

// performScheduledHarvest executes one guarded refresh pass.
func performScheduledHarvest(ctx context.Context, cfg *config.Config, db *storage.HotSwapDB, scraperClient *scraper.Client, index *search.Index, snapMgr *snapshot.Manager, deltaLog *delta.Log, store *maintenance.ScheduleStore, m *metrics.Metrics, log *logger.Logger) {
	state, _, _, err := store.Load(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to load schedule state, skipping refresh")
		return
	}
	if time.Since(time.Unix(state.LastHarvest, 0)) < minHarvestGap {
		log.WithField("last_harvest", time.Unix(state.LastHarvest, 0)).
			Debug("Recent harvest exists, skipping refresh")
		return
	}

	acquired, err := snapMgr.AcquireLeaderLock(ctx)
	if err != nil || !acquired {
		log.WithError(err).Debug("Leader lock unavailable, another server refreshes")
		return
	}
	defer func() {
		if err := snapMgr.ReleaseLeaderLock(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("Failed to release leader lock")
		}
	}()

	startTime := time.Now()
	log.Info("Starting scheduled cache refresh")

	cedulas, err := cachedCedulas(ctx, db.DB())
	if err != nil {
		log.WithError(err).Warn("Failed to enumerate cached cedulas")
		return
	}
	if len(cedulas) == 0 {
		log.Info("Cache is empty, nothing to refresh")
		return
	}

	periods := univalle.DiscoverPeriods(ctx, scraperClient, cfg.PortalBaseURL, cfg.NPrevious+1)
	if len(periods) == 0 {
		log.Warn("Period discovery failed, skipping refresh")
		return
	}

	run, stats, err := harvest.Run(ctx, db.DB(), scraperClient, log, cedulas, periods, harvest.Options{
		BaseURL:     cfg.PortalBaseURL,
		CedulaDelay: cfg.CedulaDelay,
		Concurrency: cfg.FetchConcurrency,
		SkipCache:   true, // the point is fresh data
		Metrics:     m,
		OnDocument: func(doc *asignacion.FacultyDocument) {
			if index != nil {
				_ = index.Add(doc)
			}
		},
	})
	if err != nil {
		log.WithError(err).Warn("Scheduled refresh interrupted")
		return
	}

	if deltaLog != nil {
		if _, err := deltaLog.MergeIntoDB(ctx, db.DB()); err != nil {
			log.WithError(err).Warn("Delta merge failed during refresh")
		}
	}
	if etag, err := snapMgr.Upload(ctx, db.DB()); err != nil {
		log.WithError(err).Warn("Snapshot upload failed after refresh")
	} else {
		log.WithField("etag", etag).Info("Refresh snapshot uploaded")
	}

	if err := store.Update(ctx, func(s *maintenance.State) {
		s.LastHarvest = time.Now().Unix()
	}); err != nil {
		log.WithError(err).Warn("Failed to update schedule state")
	}

	log.WithField("documents", len(run.Documents)).
		WithField("failed_pairs", run.FailedPairs()).
		WithField("fetched", stats.Fetched.Load()).
		WithField("duration", time.Since(startTime)).
		Info("Scheduled cache refresh complete")
}

// cachedCedulas returns the distinct cedulas present in the cache.
func cachedCedulas(ctx context.Context, db *storage.DB) ([]string, error) {
	docs, err := db.GetAllDocuments(ctx)
	if err != nil {
		return nil, err
	}
	cedulas := make([]string, 0, len(docs))
	for _, doc := range docs {
		cedulas = append(cedulas, doc.Cedula)
	}
	return sliceutil.Deduplicate(cedulas, func(c string) string { return c }), nil
}
