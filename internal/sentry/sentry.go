// Package sentry wires the Sentry Go SDK to Better Stack's error collector.
// Better Stack speaks the Sentry ingest protocol, so the SDK is pointed at
// its host with a synthetic DSN instead of a sentry.io project.
package sentry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config holds the error tracking settings.
type Config struct {
	// Token is the Better Stack Errors source token.
	Token string

	// Host is the Better Stack ingesting host (e.g. "errors.betterstack.com").
	Host string

	// Environment names the deployment (e.g. "production", "staging").
	Environment string

	// Release identifies the running build.
	Release string

	// SampleRate controls error sampling (0.0-1.0, default 1.0).
	SampleRate float64

	// Debug enables SDK debug logging.
	Debug bool
}

// Initialize sets up the Sentry SDK. An empty Token disables error
// tracking and returns nil, so callers never need to branch on it.
// The DSN is built as https://$TOKEN@$HOST/1; the project ID segment
// is required by the SDK but ignored by Better Stack.
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil
	}

	if cfg.Host == "" {
		return fmt.Errorf("sentry host is required when token is provided")
	}

	dsn := fmt.Sprintf("https://%s@%s/1", cfg.Token, cfg.Host)

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	})
}

// Flush waits for buffered events to reach the server.
// Returns true if everything was sent within the timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled reports whether a client is active on the current hub.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureException reports an error.
func CaptureException(err error) {
	sentry.CaptureException(err)
}

// CaptureExceptionWithContext reports an error through the hub bound to
// ctx when one exists (the gin middleware binds one per request),
// falling back to the global hub.
func CaptureExceptionWithContext(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}

// CaptureHarvestError reports a scrape failure tagged with the cedula
// and period it belongs to, so Better Stack can group failures by
// portal page rather than by stack trace alone.
func CaptureHarvestError(err error, cedula, periodo string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("cedula", cedula)
		scope.SetTag("periodo", periodo)
		sentry.CaptureException(err)
	})
}

// CaptureMessage reports a plain message event.
func CaptureMessage(message string) {
	sentry.CaptureMessage(message)
}
