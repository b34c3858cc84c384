// Package harvest drives the batch pipeline: every cedula on the roster
// crossed with every prepared period, fetched politely from the portal,
// parsed, cached, and handed in order to the emitter.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
	domerrors "github.com/univalle-dev/asignacion-go/internal/errors"
	"github.com/univalle-dev/asignacion-go/internal/logger"
	"github.com/univalle-dev/asignacion-go/internal/metrics"
	"github.com/univalle-dev/asignacion-go/internal/scraper"
	"github.com/univalle-dev/asignacion-go/internal/scraper/univalle"
	"github.com/univalle-dev/asignacion-go/internal/storage"
)

// Stats tracks harvest outcomes. All fields use atomic operations so the
// caller may read them while the run is still in flight.
type Stats struct {
	Fetched   atomic.Int64 // documents scraped from the portal
	CacheHits atomic.Int64 // documents served from the cache DB
	Empty     atomic.Int64 // empty or error pages
	Failed    atomic.Int64 // transport, HTTP and parse failures
}

// PageArchiver receives every raw portal page fetched during a run.
// Implementations must not block the harvest on archive failures.
type PageArchiver interface {
	ArchivePage(ctx context.Context, cedula, periodLabel, page string)
}

// Options configures one scheduler run.
type Options struct {
	BaseURL     string
	CedulaDelay time.Duration // pause between cedulas, portal courtesy
	Concurrency int           // parallel period fetches per cedula, default 1
	SkipCache   bool          // force portal fetches even for fresh cache entries
	Archiver    PageArchiver  // optional raw page archive
	Metrics     *metrics.Metrics
	// OnDocument is invoked from the consumer loop for every harvested
	// document, cache hits included, in cedula-then-period order.
	OnDocument func(doc *asignacion.FacultyDocument)
}

// fetchResult carries one (cedula, period) outcome back to the consumer.
type fetchResult struct {
	index     int
	period    asignacion.Period
	doc       *asignacion.FacultyDocument
	fromCache bool
	err       error
}

// Run walks the cedulas sequentially, fanning out at most
// opts.Concurrency parallel period fetches per cedula. Results merge
// into the returned HarvestRun in cedula-then-period order; only this
// loop writes the accumulator. Per-(cedula, period) failures are
// recorded and the run continues; only cancellation aborts it.
func Run(ctx context.Context, db *storage.DB, client *scraper.Client, log *logger.Logger, cedulas []string, periods []asignacion.Period, opts Options) (*asignacion.HarvestRun, *Stats, error) {
	run := asignacion.NewHarvestRun(cedulas, periods)
	stats := &Stats{}
	start := time.Now()
	defer func() {
		if opts.Metrics != nil {
			opts.Metrics.RecordRunDuration(time.Since(start).Seconds())
		}
	}()

	log.WithField("cedulas", len(cedulas)).
		WithField("periods", len(periods)).
		WithField("concurrency", opts.Concurrency).
		Info("Starting harvest")

	for i, cedula := range cedulas {
		if err := ctx.Err(); err != nil {
			log.WithField("completed", i).
				WithField("total", len(cedulas)).
				Warn("Harvest canceled")
			return run, stats, fmt.Errorf("harvest canceled: %w", err)
		}

		if i > 0 && opts.CedulaDelay > 0 {
			if err := scraper.Sleep(ctx, opts.CedulaDelay); err != nil {
				return run, stats, fmt.Errorf("harvest canceled: %w", err)
			}
		}

		harvestCedula(ctx, db, client, log, run, stats, cedula, periods, opts)

		if (i+1)%10 == 0 || i+1 == len(cedulas) {
			log.WithField("progress", fmt.Sprintf("%d/%d", i+1, len(cedulas))).
				WithField("fetched", stats.Fetched.Load()).
				WithField("cache_hits", stats.CacheHits.Load()).
				WithField("failed", stats.Failed.Load()).
				Info("Harvest progress")
		}
	}

	log.WithField("duration", time.Since(start)).
		WithField("documents", len(run.Documents)).
		WithField("empty", stats.Empty.Load()).
		WithField("failed_pairs", run.FailedPairs()).
		Info("Harvest complete")

	return run, stats, nil
}

// harvestCedula fans out the period fetches for one cedula and merges
// the results back in period order.
func harvestCedula(ctx context.Context, db *storage.DB, client *scraper.Client, log *logger.Logger, run *asignacion.HarvestRun, stats *Stats, cedula string, periods []asignacion.Period, opts Options) {
	k := opts.Concurrency
	if k < 1 {
		k = 1
	}

	// Buffered to len(periods): every worker sends exactly once, so the
	// drain below never blocks a sender.
	ch := make(chan fetchResult, len(periods))
	g := new(errgroup.Group)
	g.SetLimit(k)

	for i, period := range periods {
		g.Go(func() error {
			res := fetchOne(ctx, db, client, cedula, period, opts)
			res.index = i
			ch <- res
			return nil
		})
	}
	_ = g.Wait()
	close(ch)

	ordered := make([]fetchResult, len(periods))
	for res := range ch {
		ordered[res.index] = res
	}

	var fresh []*asignacion.FacultyDocument
	for _, res := range ordered {
		if res.err != nil {
			run.RecordError(cedula, res.period.Label, res.err.Error())
			if errors.Is(res.err, domerrors.ErrEmptyOrErrorPage) {
				stats.Empty.Add(1)
				recordHarvested(opts.Metrics, "empty")
			} else {
				stats.Failed.Add(1)
				recordHarvested(opts.Metrics, "failed")
			}
			log.WithError(res.err).
				WithField("cedula", cedula).
				WithField("periodo", res.period.Label).
				Debug("Document fetch failed")
			continue
		}

		run.Documents = append(run.Documents, *res.doc)
		if res.fromCache {
			stats.CacheHits.Add(1)
			recordHarvested(opts.Metrics, "cache_hit")
		} else {
			stats.Fetched.Add(1)
			recordHarvested(opts.Metrics, "fetched")
			if res.doc.Unmatched > 0 {
				log.WithField("cedula", cedula).
					WithField("periodo", res.period.Label).
					WithField("tables", res.doc.Unmatched).
					Warn("Unclassified tables dropped")
			}
			if opts.Metrics != nil {
				opts.Metrics.RecordUnmatchedRecords("harvest", res.doc.Unmatched)
			}
			fresh = append(fresh, res.doc)
		}
		if opts.OnDocument != nil {
			opts.OnDocument(res.doc)
		}
	}

	if len(fresh) > 0 {
		if err := db.SaveDocumentsBatch(ctx, fresh); err != nil {
			// A cache write failure costs a re-fetch next run, nothing more.
			log.WithError(err).
				WithField("cedula", cedula).
				WithField("count", len(fresh)).
				Warn("Failed to cache harvested documents")
		}
	}
}

// fetchOne resolves a single (cedula, period): cache first, then the
// portal. The raw page goes to the archiver before parsing so parse
// failures stay replayable.
func fetchOne(ctx context.Context, db *storage.DB, client *scraper.Client, cedula string, period asignacion.Period, opts Options) fetchResult {
	if !opts.SkipCache {
		if doc, err := db.GetDocument(ctx, cedula, period.Label); err == nil && doc != nil {
			return fetchResult{period: period, doc: doc, fromCache: true}
		}
	}

	page, err := univalle.FetchPage(ctx, client, opts.BaseURL, cedula, period)
	if err != nil {
		if errors.Is(err, domerrors.ErrEmptyOrErrorPage) {
			recordParsed(opts.Metrics, "empty")
		}
		return fetchResult{period: period, err: err}
	}

	if opts.Archiver != nil {
		opts.Archiver.ArchivePage(ctx, cedula, period.Label, page)
	}

	var obs asignacion.TableObserver
	if opts.Metrics != nil {
		obs = opts.Metrics
	}
	doc, err := asignacion.AssembleObserved(cedula, period, page, obs)
	if err != nil {
		recordParsed(opts.Metrics, "parse_error")
		return fetchResult{period: period, err: err}
	}
	recordParsed(opts.Metrics, "success")
	return fetchResult{period: period, doc: doc}
}

func recordHarvested(m *metrics.Metrics, status string) {
	if m != nil {
		m.RecordDocumentHarvested(status)
	}
}

func recordParsed(m *metrics.Metrics, outcome string) {
	if m != nil {
		m.RecordPageParsed(outcome)
	}
}
