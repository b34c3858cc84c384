package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
	"github.com/univalle-dev/asignacion-go/internal/config"
	"github.com/univalle-dev/asignacion-go/internal/delta"
	domerrors "github.com/univalle-dev/asignacion-go/internal/errors"
	"github.com/univalle-dev/asignacion-go/internal/logger"
	"github.com/univalle-dev/asignacion-go/internal/metrics"
	"github.com/univalle-dev/asignacion-go/internal/scraper"
	"github.com/univalle-dev/asignacion-go/internal/scraper/univalle"
	"github.com/univalle-dev/asignacion-go/internal/search"
	"github.com/univalle-dev/asignacion-go/internal/sentry"
	"github.com/univalle-dev/asignacion-go/internal/storage"
)

// maxSearchResults caps the n query parameter on /buscar.
const maxSearchResults = 50

// api carries the handler dependencies. Documents are served from the
// cache DB when fresh; a miss triggers a singleflight-deduplicated
// portal scrape whose result is cached, indexed and logged to the delta
// store so the next harvest snapshot includes it.
type api struct {
	cfg         *config.Config
	db          *storage.HotSwapDB
	scraper     *scraper.Client
	index       *search.Index
	deltaLog    delta.Recorder
	metrics     *metrics.Metrics
	log         *logger.Logger
	flight      *scraper.Flight[*asignacion.FacultyDocument]
	periodCache periodCache
}

// periodCache memoizes portal period discovery. Stale data is served
// when the portal is unreachable; an empty cache retries every call.
type periodCache struct {
	mu        sync.Mutex
	periods   []asignacion.Period
	fetchedAt time.Time
}

func newAPI(cfg *config.Config, db *storage.HotSwapDB, scraperClient *scraper.Client, index *search.Index, deltaLog delta.Recorder, m *metrics.Metrics, log *logger.Logger) *api {
	return &api{
		cfg:      cfg,
		db:       db,
		scraper:  scraperClient,
		index:    index,
		deltaLog: deltaLog,
		metrics:  m,
		log:      log.WithModule("api"),
		flight:   scraper.NewFlight[*asignacion.FacultyDocument](),
	}
}

// discoverPeriods returns the portal's period list, cached for the
// sheet-metadata TTL.
func (a *api) discoverPeriods(ctx context.Context) []asignacion.Period {
	a.periodCache.mu.Lock()
	defer a.periodCache.mu.Unlock()

	if len(a.periodCache.periods) > 0 && time.Since(a.periodCache.fetchedAt) < a.cfg.SheetMetaTTL {
		return a.periodCache.periods
	}

	periods := univalle.DiscoverPeriods(ctx, a.scraper, a.cfg.PortalBaseURL, 0)
	if len(periods) == 0 {
		// Portal fault: keep serving whatever we had.
		return a.periodCache.periods
	}

	a.periodCache.periods = periods
	a.periodCache.fetchedAt = time.Now()
	return periods
}

// portalPeriod resolves a period label to the portal's period entry.
func (a *api) portalPeriod(ctx context.Context, label string) (asignacion.Period, bool) {
	for _, p := range a.discoverPeriods(ctx) {
		if p.Label == label {
			return p, true
		}
	}
	return asignacion.Period{}, false
}

// handlePeriodos serves GET /api/v1/periodos.
func (a *api) handlePeriodos(c *gin.Context) {
	periods := a.discoverPeriods(c.Request.Context())
	if len(periods) == 0 {
		c.JSON(http.StatusBadGateway, gin.H{"error": "period discovery failed, portal unreachable"})
		return
	}

	counts, err := a.db.DB().PeriodoCounts(c.Request.Context())
	cached := make(map[string]int, len(counts))
	if err == nil {
		for _, pc := range counts {
			cached[pc.Periodo] = pc.Count
		}
	}

	type periodEntry struct {
		asignacion.Period
		CachedDocuments int `json:"cached_documents"`
	}
	entries := make([]periodEntry, len(periods))
	for i, p := range periods {
		entries[i] = periodEntry{Period: p, CachedDocuments: cached[p.Label]}
	}
	c.JSON(http.StatusOK, gin.H{"periods": entries})
}

// handleDocente serves GET /api/v1/docentes/:cedula?periodo=YYYY-T.
func (a *api) handleDocente(c *gin.Context) {
	doc, ok := a.resolveDocument(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc)
}

// handleResumen serves GET /api/v1/docentes/:cedula/resumen: the
// flattened rows plus numeric hour totals per category.
func (a *api) handleResumen(c *gin.Context) {
	doc, ok := a.resolveDocument(c)
	if !ok {
		return
	}

	rows := asignacion.Flatten(*doc)
	totals := make(map[string]float64)
	var totalHoras float64
	for _, row := range rows {
		totals[row.TipoActividad] += row.NumeroHoras
		totalHoras += row.NumeroHoras
	}

	rendered := make([]map[string]string, len(rows))
	for i, row := range rows {
		cols := row.Columns()
		entry := make(map[string]string, len(cols))
		for j, name := range asignacion.SheetHeader {
			entry[name] = cols[j]
		}
		rendered[i] = entry
	}

	c.JSON(http.StatusOK, gin.H{
		"cedula":            doc.Cedula,
		"periodo":           doc.Period.Label,
		"nombre":            doc.Personal.FullName(),
		"activities":        rendered,
		"hours_by_category": totals,
		"total_hours":       totalHoras,
	})
}

// resolveDocument validates the request, serves from cache or scrapes
// on demand. On failure it writes the error response and returns false.
func (a *api) resolveDocument(c *gin.Context) (*asignacion.FacultyDocument, bool) {
	ctx := c.Request.Context()

	cedula := asignacion.CleanCedula(c.Param("cedula"))
	if !asignacion.ValidCedula(cedula) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cedula must be 7-10 digits"})
		return nil, false
	}

	label := c.Query("periodo")
	if label != "" {
		parsed, err := asignacion.ParsePeriodLabel(label)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "periodo must be YYYY-T with term 1 or 2"})
			return nil, false
		}
		label = parsed.Label
	} else {
		periods := a.discoverPeriods(ctx)
		if len(periods) == 0 {
			c.JSON(http.StatusBadGateway, gin.H{"error": "period discovery failed, portal unreachable"})
			return nil, false
		}
		label = periods[0].Label
	}

	if doc, err := a.db.DB().GetDocument(ctx, cedula, label); err == nil && doc != nil {
		return doc, true
	}

	doc, err := a.scrapeOnDemand(ctx, cedula, label)
	if err != nil {
		a.respondScrapeError(c, err, cedula, label)
		return nil, false
	}
	return doc, true
}

// scrapeOnDemand fetches one document live, deduplicating concurrent
// requests for the same (cedula, period) through singleflight.
func (a *api) scrapeOnDemand(ctx context.Context, cedula, label string) (*asignacion.FacultyDocument, error) {
	period, ok := a.portalPeriod(ctx, label)
	if !ok {
		return nil, domerrors.NewFormatError("periodo", label, "period not offered by the portal")
	}

	key := cedula + "|" + label
	return a.flight.Do(ctx, key, func() (*asignacion.FacultyDocument, error) {
		scrapeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.OnDemandScrapeTimeout)
		defer cancel()

		doc, err := univalle.FetchDocument(scrapeCtx, a.scraper, a.cfg.PortalBaseURL, cedula, period, a.metrics)
		if err != nil {
			a.recordParseOutcome(err)
			return nil, err
		}
		a.metrics.RecordPageParsed("success")
		if doc.Unmatched > 0 {
			a.log.WithField("cedula", cedula).
				WithField("periodo", label).
				WithField("tables", doc.Unmatched).
				Warn("Unclassified tables dropped")
		}
		a.metrics.RecordUnmatchedRecords("on_demand", doc.Unmatched)

		if err := a.db.DB().SaveDocument(scrapeCtx, doc); err != nil {
			a.log.WithError(err).
				WithField("cedula", cedula).
				WithField("periodo", label).
				Warn("Failed to cache on-demand document")
		}
		if a.deltaLog != nil {
			if err := a.deltaLog.RecordDocuments(scrapeCtx, []*asignacion.FacultyDocument{doc}); err != nil {
				a.log.WithError(err).Debug("Failed to record delta entry")
			}
		}
		if a.index != nil {
			_ = a.index.Add(doc)
		}

		a.log.WithField("cedula", cedula).
			WithField("periodo", label).
			WithField("activities", doc.TotalActivities()).
			Info("On-demand scrape complete")
		return doc, nil
	})
}

// recordParseOutcome classifies a failed on-demand fetch for the parse
// metric. Transport and HTTP failures never reached the parser and are
// counted by the portal request metrics instead.
func (a *api) recordParseOutcome(err error) {
	var parseErr *domerrors.ParseError
	switch {
	case errors.Is(err, domerrors.ErrEmptyOrErrorPage):
		a.metrics.RecordPageParsed("empty")
	case errors.As(err, &parseErr):
		a.metrics.RecordPageParsed("parse_error")
	}
}

// respondScrapeError maps the error taxonomy onto HTTP statuses.
func (a *api) respondScrapeError(c *gin.Context, err error, cedula, label string) {
	var (
		httpErr   *domerrors.HTTPError
		formatErr *domerrors.FormatError
		parseErr  *domerrors.ParseError
	)

	switch {
	case errors.Is(err, domerrors.ErrEmptyOrErrorPage):
		c.JSON(http.StatusNotFound, gin.H{"error": "no assignment document for this cedula and period"})
	case errors.As(err, &formatErr):
		c.JSON(http.StatusNotFound, gin.H{"error": formatErr.Reason})
	case errors.As(err, &parseErr):
		a.log.WithError(err).WithField("cedula", cedula).WithField("periodo", label).Warn("Document parse failed")
		sentry.CaptureHarvestError(err, cedula, label)
		c.JSON(http.StatusBadGateway, gin.H{"error": "portal document could not be parsed"})
	case errors.As(err, &httpErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "portal returned an error"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "portal request timed out"})
	default:
		a.log.WithError(err).WithField("cedula", cedula).WithField("periodo", label).Error("On-demand scrape failed")
		sentry.CaptureHarvestError(err, cedula, label)
		c.JSON(http.StatusBadGateway, gin.H{"error": "portal request failed"})
	}
}

// handleBuscar serves GET /api/v1/buscar?q=...&n=10&periodo=YYYY-T.
func (a *api) handleBuscar(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	n := search.MaxResults
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a positive integer"})
			return
		}
		n = min(parsed, maxSearchResults)
	}

	var (
		results []search.Result
		err     error
	)
	if periodo := c.Query("periodo"); periodo != "" {
		results, err = a.index.SearchPeriod(c.Request.Context(), query, periodo, n)
	} else {
		results, err = a.index.Search(c.Request.Context(), query, n)
	}
	if err != nil {
		a.metrics.RecordSearchQuery("error")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search index not ready"})
		return
	}

	a.metrics.RecordSearchQuery("ok")
	c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
}

// handleRuns serves GET /api/v1/runs: recent harvest run summaries.
func (a *api) handleRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	runs, err := a.db.DB().ListRunSummaries(c.Request.Context(), limit)
	if err != nil {
		a.log.WithError(err).Error("Failed to list run summaries")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
