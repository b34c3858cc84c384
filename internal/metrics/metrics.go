package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Portal fetch metrics
	PortalRequestsTotal   *prometheus.CounterVec
	PortalDurationSeconds *prometheus.HistogramVec

	// Parse metrics
	PagesParsedTotal     *prometheus.CounterVec
	TablesClassified     *prometheus.CounterVec
	UnknownTablesTotal   prometheus.Counter
	UnmatchedRecordsPage *prometheus.HistogramVec

	// Harvest metrics
	DocumentsHarvested *prometheus.CounterVec
	RunDuration        prometheus.Histogram

	// Emit metrics
	RowsEmittedTotal *prometheus.CounterVec
	SheetFlushTotal  *prometheus.CounterVec
	SheetFlushDuration prometheus.Histogram

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheSize        *prometheus.GaugeVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterWaitDuration *prometheus.HistogramVec
	RateLimiterDropped      *prometheus.CounterVec
	RateLimiterActiveUsers  prometheus.Gauge

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec

	// Search metrics
	SearchQueriesTotal *prometheus.CounterVec
	IndexSize          *prometheus.GaugeVec

	// Background job metrics
	JobDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// Portal fetch metrics
		PortalRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "asignacion_portal_requests_total",
				Help: "Total number of portal requests by endpoint and status",
			},
			[]string{"endpoint", "status"}, // status: success, error, empty_page, not_found
		),

		PortalDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "asignacion_portal_duration_seconds",
				Help:    "Portal request duration in seconds by endpoint",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60}, // Matches 60s timeout + retries
			},
			[]string{"endpoint"}, // endpoint: periods, document
		),

		// Parse metrics
		PagesParsedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "asignacion_pages_parsed_total",
				Help: "Total number of pages parsed by outcome",
			},
			[]string{"outcome"}, // outcome: success, empty, parse_error
		),

		TablesClassified: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "asignacion_tables_classified_total",
				Help: "Total number of tables classified by kind",
			},
			[]string{"kind"},
		),

		UnknownTablesTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "asignacion_unknown_tables_total",
				Help: "Total number of tables no classification rule matched",
			},
		),

		UnmatchedRecordsPage: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "asignacion_unmatched_records_per_page",
				Help:    "Rows discarded by normalizers per parsed page",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
			[]string{"endpoint"},
		),

		// Harvest metrics
		DocumentsHarvested: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "asignacion_documents_harvested_total",
				Help: "Total number of (cedula, period) documents harvested by status",
			},
			[]string{"status"}, // status: success, empty, error
		),

		RunDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "asignacion_run_duration_seconds",
				Help:    "Total duration of a harvest run",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1800, 3600, 7200}, // 10s to 2h
			},
		),

		// Emit metrics
		RowsEmittedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "asignacion_rows_emitted_total",
				Help: "Total number of flat activity rows emitted by category",
			},
			[]string{"categoria"},
		),

		SheetFlushTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "asignacion_sheet_flushes_total",
				Help: "Total number of per-period sheet flushes by status",
			},
			[]string{"status"}, // status: success, error
		),

		SheetFlushDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "asignacion_sheet_flush_duration_seconds",
				Help:    "Duration of a single per-period batch append",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		// Cache metrics
		CacheHitsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "asignacion_cache_hits_total",
				Help: "Total number of cache hits by store",
			},
			[]string{"store"}, // store: document, sheet_meta
		),

		CacheMissesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "asignacion_cache_misses_total",
				Help: "Total number of cache misses by store",
			},
			[]string{"store"},
		),

		CacheSize: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "asignacion_cache_size_entries",
				Help: "Current number of cached entries by store",
			},
			[]string{"store"}, // store: documents, runs
		),

		// HTTP metrics
		HTTPErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "asignacion_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // error_type: timeout, rate_limit, bad_request, etc.
		),

		// Rate limiter metrics
		RateLimiterWaitDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "asignacion_rate_limiter_wait_duration_seconds",
				Help:    "Time spent waiting for rate limiter token by limiter type",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5}, // 1ms to 5s
			},
			[]string{"limiter_type"}, // limiter_type: portal, client
		),

		RateLimiterDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "asignacion_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"},
		),

		RateLimiterActiveUsers: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "asignacion_rate_limiter_active_clients",
				Help: "Current number of tracked client rate limiters",
			},
		),

		// Singleflight metrics
		SingleflightDedupTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "asignacion_singleflight_dedup_total",
				Help: "Total number of deduplicated requests (requests that waited instead of executing)",
			},
			[]string{"endpoint"},
		),

		// Search metrics
		SearchQueriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "asignacion_search_queries_total",
				Help: "Total number of search queries by status",
			},
			[]string{"status"}, // status: success, empty, error
		),

		IndexSize: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "asignacion_index_size_documents",
				Help: "Current number of documents in the search index",
			},
			[]string{"index"}, // index: bm25
		),

		// Background job metrics
		JobDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "asignacion_job_duration_seconds",
				Help:    "Duration of background jobs",
				Buckets: []float64{0.1, 1, 10, 60, 300, 1800, 3600},
			},
			[]string{"job"}, // job: cleanup, snapshot_poll, scheduled_harvest
		),
	}

	return m
}

// RecordPortalRequest records a portal request with status
func (m *Metrics) RecordPortalRequest(endpoint, status string, duration float64) {
	m.PortalRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.PortalDurationSeconds.WithLabelValues(endpoint).Observe(duration)
}

// RecordPageParsed records a parsed page outcome
func (m *Metrics) RecordPageParsed(outcome string) {
	m.PagesParsedTotal.WithLabelValues(outcome).Inc()
}

// RecordTableClassified records a classified table kind
func (m *Metrics) RecordTableClassified(kind string) {
	m.TablesClassified.WithLabelValues(kind).Inc()
}

// RecordUnknownTable records a table no rule matched
func (m *Metrics) RecordUnknownTable() {
	m.UnknownTablesTotal.Inc()
}

// RecordUnmatchedRecords records rows discarded by normalizers on one page
func (m *Metrics) RecordUnmatchedRecords(endpoint string, count int) {
	m.UnmatchedRecordsPage.WithLabelValues(endpoint).Observe(float64(count))
}

// RecordDocumentHarvested records a harvested (cedula, period) document
func (m *Metrics) RecordDocumentHarvested(status string) {
	m.DocumentsHarvested.WithLabelValues(status).Inc()
}

// RecordRunDuration records total harvest run duration
func (m *Metrics) RecordRunDuration(duration float64) {
	m.RunDuration.Observe(duration)
}

// RecordRowsEmitted records emitted flat rows for a category
func (m *Metrics) RecordRowsEmitted(categoria string, count int) {
	m.RowsEmittedTotal.WithLabelValues(categoria).Add(float64(count))
}

// RecordSheetFlush records a per-period sheet flush
func (m *Metrics) RecordSheetFlush(status string, duration float64) {
	m.SheetFlushTotal.WithLabelValues(status).Inc()
	m.SheetFlushDuration.Observe(duration)
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(store string) {
	m.CacheHitsTotal.WithLabelValues(store).Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(store string) {
	m.CacheMissesTotal.WithLabelValues(store).Inc()
}

// SetCacheSize updates the cache size gauge for a store
func (m *Metrics) SetCacheSize(store string, count int) {
	m.CacheSize.WithLabelValues(store).Set(float64(count))
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordRateLimiterWait records time spent waiting for rate limiter
func (m *Metrics) RecordRateLimiterWait(limiterType string, duration float64) {
	m.RateLimiterWaitDuration.WithLabelValues(limiterType).Observe(duration)
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// SetRateLimiterUsers updates the tracked client limiter gauge
func (m *Metrics) SetRateLimiterUsers(count int) {
	m.RateLimiterActiveUsers.Set(float64(count))
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(endpoint string) {
	m.SingleflightDedupTotal.WithLabelValues(endpoint).Inc()
}

// RecordSearchQuery records a search query outcome
func (m *Metrics) RecordSearchQuery(status string) {
	m.SearchQueriesTotal.WithLabelValues(status).Inc()
}

// SetIndexSize updates the search index size gauge
func (m *Metrics) SetIndexSize(index string, count int) {
	m.IndexSize.WithLabelValues(index).Set(float64(count))
}

// RecordJob records a background job execution
func (m *Metrics) RecordJob(job string, duration float64) {
	m.JobDuration.WithLabelValues(job).Observe(duration)
}
