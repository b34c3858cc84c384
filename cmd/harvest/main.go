// Package main is the batch harvest pipeline: it reads the cedula
// roster from the source spreadsheet, prepares one target tab per
// period, scrapes every (cedula, period) document from the portal and
// flushes the flattened rows per period. Exit code 0 means every
// preparation step succeeded and no flush failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/univalle-dev/asignacion-go/internal/archive"
	"github.com/univalle-dev/asignacion-go/internal/asignacion"
	"github.com/univalle-dev/asignacion-go/internal/buildinfo"
	"github.com/univalle-dev/asignacion-go/internal/config"
	"github.com/univalle-dev/asignacion-go/internal/delta"
	"github.com/univalle-dev/asignacion-go/internal/emit"
	"github.com/univalle-dev/asignacion-go/internal/harvest"
	"github.com/univalle-dev/asignacion-go/internal/logger"
	"github.com/univalle-dev/asignacion-go/internal/maintenance"
	"github.com/univalle-dev/asignacion-go/internal/metrics"
	"github.com/univalle-dev/asignacion-go/internal/scraper"
	"github.com/univalle-dev/asignacion-go/internal/scraper/univalle"
	"github.com/univalle-dev/asignacion-go/internal/sentry"
	"github.com/univalle-dev/asignacion-go/internal/sheets"
	"github.com/univalle-dev/asignacion-go/internal/snapshot"
	"github.com/univalle-dev/asignacion-go/internal/storage"
)

// CLI flags
var (
	dryRunFlag  = flag.Bool("dry-run", false, "Harvest and parse but skip every spreadsheet write")
	cedulasFlag = flag.String("cedulas", "", "Comma-separated cedula override (skips the roster read)")
	periodsFlag = flag.Int("periods", -1, "Override N_PREVIOUS: harvest this many periods before the current one")
	resetFlag   = flag.Bool("reset-cache", false, "Delete all cached documents before harvesting")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadForMode(config.HarvestMode)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, logShutdown := logger.NewWithOptions(logger.Options{
		Level:               cfg.LogLevel,
		BetterstackToken:    cfg.BetterstackToken,
		BetterstackEndpoint: cfg.BetterstackEndpoint,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = logShutdown(shutdownCtx)
	}()
	log.WithField("version", buildinfo.Version).Info("Starting harvest run")

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

	// SIGINT/SIGTERM stop scheduling new fetches; in-flight work drains.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if code := run(ctx, cfg, log); code != 0 {
		stop()
		sentry.Flush(2 * time.Second)
		os.Exit(code)
	}
}

// run executes the whole pipeline and returns the process exit code.
// Split from main so the deferred cleanups fire before os.Exit.
func run(ctx context.Context, cfg *config.Config, log *logger.Logger) int {
	startTime := time.Now()
	runID := uuid.NewString()
	log = log.WithModule("harvest").WithField("run_id", runID)

	db, err := storage.New(ctx, cfg.SQLitePath(), cfg.CacheTTL)
	if err != nil {
		log.WithError(err).Error("Failed to open database")
		return 1
	}
	defer func() { _ = db.Close() }()
	log.WithField("path", cfg.SQLitePath()).
		WithField("cache_ttl", cfg.CacheTTL).
		Info("Database connected")

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	db.SetMetrics(m)

	if *resetFlag {
		log.Warn("Resetting document cache...")
		if _, err := db.Writer().ExecContext(ctx, "DELETE FROM documents"); err != nil {
			log.WithError(err).Error("Failed to reset cache")
			return 1
		}
		log.Info("Document cache reset")
	}

	// The run lock serializes scheduled runners: two harvests appending
	// to the same spreadsheet would interleave rows.
	var (
		arcClient *archive.Client
		deltaLog  *delta.Log
	)
	if cfg.Archive.Enabled {
		arcClient, err = archive.New(ctx, archive.Config{
			AccountID:       cfg.Archive.AccountID,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
			Bucket:          cfg.Archive.Bucket,
		})
		if err != nil {
			log.WithError(err).Error("Failed to create archive client")
			return 1
		}

		lock := archive.NewRunLock(arcClient, cfg.Archive.LockKey, cfg.Archive.LockTTL)
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			log.WithError(err).Error("Failed to acquire run lock")
			return 1
		}
		if !acquired {
			log.Warn("Another harvest holds the run lock, exiting")
			fmt.Println("⏭️  Run lock held by another harvester, skipping")
			return 1
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := lock.Release(releaseCtx); err != nil {
				log.WithError(err).Warn("Failed to release run lock")
			}
		}()
		log.WithField("owner", lock.OwnerID()).Info("Run lock acquired")

		deltaLog, err = delta.NewLog(arcClient, cfg.Archive.DeltaPrefix, runID)
		if err != nil {
			log.WithError(err).Error("Failed to create delta log")
			return 1
		}
		// Fold in documents API servers scraped since the last run so
		// this run's cache (and snapshot) supersedes them.
		if stats, err := deltaLog.MergeIntoDB(ctx, db); err != nil {
			log.WithError(err).Warn("Delta merge failed, continuing with local cache")
		} else if stats.ObjectsMerged > 0 {
			log.WithField("merged", stats.ObjectsMerged).
				WithField("skipped", stats.ObjectsSkipped).
				Info("Delta log merged")
		}
	}

	scraperClient := scraper.NewClient(cfg.ScraperTimeout, cfg.ScraperMaxRetries, cfg.RetryDelayMin, cfg.RetryDelayMax)
	scraperClient.SetMetrics(m)

	// Period preparation: the backward walk from CURRENT_PERIOD decides
	// what to harvest; the portal listing supplies the opaque ids.
	nPrevious := cfg.NPrevious
	if *periodsFlag >= 0 {
		nPrevious = *periodsFlag
	}
	labels, err := asignacion.EnumerateBack(cfg.CurrentPeriod, nPrevious)
	if err != nil {
		log.WithError(err).Error("Failed to enumerate periods")
		return 1
	}

	discovered := univalle.DiscoverPeriods(ctx, scraperClient, cfg.PortalBaseURL, 0)
	if len(discovered) == 0 {
		log.Error("Period discovery returned nothing, portal unreachable or listing changed")
		return 1
	}
	periods, missing := matchPeriods(discovered, labels)
	if len(periods) == 0 {
		log.WithField("wanted", labels).Error("No prepared period exists on the portal")
		return 1
	}
	for _, label := range missing {
		log.WithField("periodo", label).Warn("Period not offered by the portal, skipped")
	}
	log.WithField("periods", periodLabels(periods)).Info("Periods prepared")

	// The sheets client is only needed when the roster is read from the
	// source spreadsheet or when rows will actually be written.
	var sheetsClient *sheets.Client
	if !*dryRunFlag || *cedulasFlag == "" {
		creds, err := cfg.CredentialsJSON()
		if err != nil {
			log.WithError(err).Error("Failed to load spreadsheet credentials")
			return 1
		}
		sheetsClient, err = sheets.New(ctx, creds)
		if err != nil {
			log.WithError(err).Error("Failed to create sheets client")
			return 1
		}
	}

	var cedulas []string
	if *cedulasFlag != "" {
		cedulas = parseCedulaList(*cedulasFlag)
		if len(cedulas) == 0 {
			log.WithField("flag", *cedulasFlag).Error("No valid cedula in -cedulas")
			return 1
		}
		log.WithField("count", len(cedulas)).Info("Cedula roster overridden from flags")
	} else {
		cedulas, err = harvest.LoadRoster(ctx, sheetsClient, cfg.SourceSpreadsheetID, cfg.SourceWorksheet, cfg.SourceColumn)
		if err != nil {
			log.WithError(err).Error("Failed to load cedula roster")
			return 1
		}
		log.WithField("count", len(cedulas)).
			WithField("worksheet", cfg.SourceWorksheet).
			WithField("column", cfg.SourceColumn).
			Info("Cedula roster loaded")
	}

	var emitter *emit.Emitter
	if *dryRunFlag {
		emitter = emit.New(discardStore{}, cfg.TargetSpreadsheetID, log, emit.Options{Metrics: m})
		log.Warn("Dry run: no spreadsheet writes will happen")
	} else {
		emitter = emit.New(sheetsClient, cfg.TargetSpreadsheetID, log, emit.Options{Meta: db, Metrics: m})
	}
	if err := emitter.PrepareSheets(ctx, periods); err != nil {
		log.WithError(err).Error("Sheet preparation failed")
		sentry.CaptureException(err)
		return 1
	}
	log.WithField("sheets", len(periods)).Info("Target sheets prepared")

	summary := &storage.RunSummary{
		ID:           runID,
		StartedAt:    startTime.Unix(),
		Periods:      periodLabels(periods),
		TotalCedulas: len(cedulas),
		Status:       storage.RunStatusRunning,
	}
	if err := db.SaveRunSummary(ctx, summary); err != nil {
		log.WithError(err).Warn("Failed to persist run summary")
	}

	var archiver harvest.PageArchiver
	if arcClient != nil {
		archiver = archive.NewPageArchiver(arcClient, runID, log)
	}

	run, stats, runErr := harvest.Run(ctx, db, scraperClient, log, cedulas, periods, runOptions(cfg, archiver, m, emitter.Add))
	if runErr != nil {
		log.WithError(runErr).Warn("Harvest interrupted, flushing partial results")
	}

	written := 0
	if *dryRunFlag {
		log.WithField("rows", emitter.Pending()).Info("Dry run: rows accumulated, not flushed")
	} else {
		// Flush whatever was harvested; per-sheet failures land in
		// run.CriticalErrors and the remaining periods still flush.
		flushCtx := ctx
		if flushCtx.Err() != nil {
			var cancel context.CancelFunc
			flushCtx, cancel = context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
		}
		written, err = emitter.FlushAll(flushCtx, run)
		if err != nil {
			log.WithError(err).Error("Flush failed")
			run.CriticalErrors = append(run.CriticalErrors, err.Error())
		}
	}

	duration := time.Since(startTime)
	finalizeSummary(ctx, db, log, summary, run, stats, written, runErr)

	if arcClient != nil && !*dryRunFlag && runErr == nil {
		postRunArchive(ctx, cfg, db, arcClient, deltaLog, log)
	}

	fmt.Print(harvest.Summarize(run, stats, duration))

	switch {
	case runErr != nil:
		fmt.Fprintf(os.Stderr, "\n❌ Harvest interrupted after %v: %v\n", duration.Round(time.Second), runErr)
		return 1
	case len(run.CriticalErrors) > 0:
		fmt.Fprintf(os.Stderr, "\n❌ Harvest finished with %d critical errors in %v\n",
			len(run.CriticalErrors), duration.Round(time.Second))
		return 1
	default:
		fmt.Printf("\n✅ Harvest complete: %d documents, %d rows written in %v\n",
			len(run.Documents), written, duration.Round(time.Second))
		return 0
	}
}

// runOptions builds the scheduler options for one batch run. SkipCache
// is always on: a batch run exists to re-read the portal, the cache
// only feeds the API and the snapshot.
func runOptions(cfg *config.Config, archiver harvest.PageArchiver, m *metrics.Metrics, onDocument func(*asignacion.FacultyDocument)) harvest.Options {
	return harvest.Options{
		BaseURL:     cfg.PortalBaseURL,
		CedulaDelay: cfg.CedulaDelay,
		Concurrency: cfg.FetchConcurrency,
		SkipCache:   true,
		Archiver:    archiver,
		Metrics:     m,
		OnDocument:  onDocument,
	}
}

// finalizeSummary records the run outcome in the cache DB so the API's
// /runs endpoint can serve it.
func finalizeSummary(ctx context.Context, db *storage.DB, log *logger.Logger, summary *storage.RunSummary, run *asignacion.HarvestRun, stats *harvest.Stats, written int, runErr error) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
	}

	summary.FinishedAt = time.Now().Unix()
	summary.Fetched = int(stats.Fetched.Load())
	summary.CacheHits = int(stats.CacheHits.Load())
	summary.Empty = int(stats.Empty.Load())
	summary.Failed = int(stats.Failed.Load())
	summary.RowsEmitted = written
	summary.Status = storage.RunStatusCompleted
	switch {
	case runErr != nil:
		summary.Status = storage.RunStatusFailed
		summary.LastError = runErr.Error()
	case len(run.CriticalErrors) > 0:
		summary.Status = storage.RunStatusFailed
		summary.LastError = run.CriticalErrors[0]
	}

	if err := db.SaveRunSummary(ctx, summary); err != nil {
		log.WithError(err).Warn("Failed to persist run summary")
	}
	if _, err := db.PruneRunSummaries(ctx, 50); err != nil {
		log.WithError(err).Debug("Failed to prune old run summaries")
	}
}

// postRunArchive publishes the run's results for the API servers: any
// delta entries written during the run are folded in, the cache is
// snapshotted to object storage, and the schedule state is advanced.
// All failures here are non-fatal; the spreadsheet already has the rows.
func postRunArchive(ctx context.Context, cfg *config.Config, db *storage.DB, arcClient *archive.Client, deltaLog *delta.Log, log *logger.Logger) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
	}

	if deltaLog != nil {
		if _, err := deltaLog.MergeIntoDB(ctx, db); err != nil {
			log.WithError(err).Warn("Post-run delta merge failed")
		}
	}

	mgr := snapshot.New(arcClient, snapshot.Config{
		SnapshotKey: cfg.Archive.SnapshotKey,
		LockKey:     cfg.Archive.LockKey,
		LockTTL:     cfg.Archive.LockTTL,
		TempDir:     cfg.DataDir,
	})
	if etag, err := mgr.Upload(ctx, db); err != nil {
		log.WithError(err).Warn("Snapshot upload failed")
	} else {
		log.WithField("etag", etag).Info("Cache snapshot uploaded")
	}

	store, err := maintenance.NewScheduleStore(arcClient, cfg.Archive.StateKey, 30*time.Second)
	if err != nil {
		log.WithError(err).Warn("Failed to open schedule state")
		return
	}
	if err := store.Update(ctx, func(s *maintenance.State) {
		s.LastHarvest = time.Now().Unix()
	}); err != nil {
		log.WithError(err).Warn("Failed to update schedule state")
	}
}

// parseCedulaList cleans and validates the -cedulas override, dropping
// duplicates and invalid entries.
func parseCedulaList(raw string) []string {
	parts := strings.Split(raw, ",")
	cedulas := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		cedula := asignacion.CleanCedula(part)
		if !asignacion.ValidCedula(cedula) {
			continue
		}
		if _, dup := seen[cedula]; dup {
			continue
		}
		seen[cedula] = struct{}{}
		cedulas = append(cedulas, cedula)
	}
	return cedulas
}

// matchPeriods resolves prepared labels against the portal's discovered
// periods. The result preserves label order (current first, walking
// back); labels the portal does not offer come back in missing.
func matchPeriods(discovered []asignacion.Period, labels []string) (matched []asignacion.Period, missing []string) {
	byLabel := make(map[string]asignacion.Period, len(discovered))
	for _, p := range discovered {
		if _, ok := byLabel[p.Label]; !ok {
			byLabel[p.Label] = p
		}
	}
	for _, label := range labels {
		if p, ok := byLabel[label]; ok {
			matched = append(matched, p)
		} else {
			missing = append(missing, label)
		}
	}
	return matched, missing
}

func periodLabels(periods []asignacion.Period) []string {
	labels := make([]string, len(periods))
	for i, p := range periods {
		labels[i] = p.Label
	}
	return labels
}

// discardStore satisfies emit.SheetStore for dry runs: sheet identities
// are fabricated and appends vanish.
type discardStore struct{}

func (discardStore) EnsureSheet(_ context.Context, _, title string, _ []string) (*sheets.SheetInfo, error) {
	return &sheets.SheetInfo{Title: title}, nil
}

func (discardStore) AppendRows(context.Context, string, string, [][]string) error {
	return nil
}
