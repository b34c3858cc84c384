// Package config provides centralized timeout constants for the application.
//
// These values are tuned for:
//   - Portal response times (the legacy assignment portal is slow and
//     intolerant of aggressive clients)
//   - Google Sheets API latency and quota behavior
//   - SQLite performance characteristics (WAL mode, busy timeout)
package config

import "time"

// HTTP server timeouts
const (
	// APIHTTPRead is the HTTP server read timeout for API requests.
	// Requests carry no body beyond small query strings.
	APIHTTPRead = 10 * time.Second

	// APIHTTPWrite is the HTTP server write timeout.
	// Must accommodate an on-demand portal scrape on a cache miss.
	APIHTTPWrite = 120 * time.Second

	// APIHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	APIHTTPIdle = 120 * time.Second
)

// Scraper timeouts
const (
	// ScraperRequest is the timeout for a single HTTP request to the portal.
	// The portal renders a full document server-side per request and can
	// take tens of seconds under load.
	ScraperRequest = 60 * time.Second

	// RetryDelayMinDefault is the lower bound of the uniform random delay
	// before a retry attempt.
	RetryDelayMinDefault = 500 * time.Millisecond

	// RetryDelayMaxDefault is the upper bound of the uniform random delay
	// before a retry attempt.
	RetryDelayMaxDefault = 1 * time.Second

	// CedulaDelayDefault is the pause between consecutive cedulas during a
	// harvest run. Keeps request pressure on the portal near one document
	// burst every couple of seconds.
	CedulaDelayDefault = 2 * time.Second

	// OnDemandScrapeTimeout bounds a server-side cache-miss scrape.
	// Covers one period-page fetch plus up to one retried document fetch.
	OnDemandScrapeTimeout = 90 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	// Handles concurrent write contention during harvest merges.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	// Prevents stale connections and allows connection pool refresh.
	DatabaseConnMaxLifetime = time.Hour
)

// Sheets API timeouts
const (
	// SheetMetaDefaultTTL is how long cached spreadsheet metadata (sheet
	// list, header state) stays valid before being re-read.
	SheetMetaDefaultTTL = 30 * time.Minute

	// SheetRequestTimeout bounds a single Sheets API call.
	SheetRequestTimeout = 60 * time.Second
)

// Background job intervals
const (
	// CacheCleanupInterval is how often expired cache entries are deleted.
	CacheCleanupInterval = 12 * time.Hour

	// CacheCleanupInitialDelay is the delay before first cache cleanup.
	// Allows server to stabilize before running cleanup.
	CacheCleanupInitialDelay = 5 * time.Minute

	// MetricsUpdateInterval is how often cache size metrics are updated.
	MetricsUpdateInterval = 5 * time.Minute

	// RateLimiterCleanupInterval is how often inactive client rate limiters are cleaned.
	RateLimiterCleanupInterval = 5 * time.Minute

	// SnapshotPollInterval is the default interval at which servers check
	// object storage for a newer cache snapshot.
	SnapshotPollInterval = 5 * time.Minute
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	// Allows in-flight requests to complete before forceful termination.
	GracefulShutdown = 30 * time.Second
)
