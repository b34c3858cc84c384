// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	requestIDKey contextKey = "ctxutil.requestID"
	runIDKey     contextKey = "ctxutil.runID"
	cedulaKey    contextKey = "ctxutil.cedula"
	periodKey    contextKey = "ctxutil.period"
)

// WithRequestID adds a request ID to the context for tracing.
// Request ID is typically generated per HTTP request for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

// WithRunID adds a harvest run ID to the context.
// Every scrape and emit performed under a run carries this ID so that
// logs from concurrent period fetches can be correlated.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID retrieves the harvest run ID from the context.
// Returns the run ID if found, empty string otherwise.
func GetRunID(ctx context.Context) string {
	if v := ctx.Value(runIDKey); v != nil {
		if runID, ok := v.(string); ok && runID != "" {
			return runID
		}
	}
	return ""
}

// WithCedula adds the faculty cedula currently being processed to the context.
func WithCedula(ctx context.Context, cedula string) context.Context {
	return context.WithValue(ctx, cedulaKey, cedula)
}

// GetCedula retrieves the cedula from the context.
// Returns the cedula if found, empty string otherwise.
func GetCedula(ctx context.Context) string {
	if v := ctx.Value(cedulaKey); v != nil {
		if cedula, ok := v.(string); ok && cedula != "" {
			return cedula
		}
	}
	return ""
}

// WithPeriod adds the academic period label currently being processed
// to the context (e.g. "2026-1").
func WithPeriod(ctx context.Context, period string) context.Context {
	return context.WithValue(ctx, periodKey, period)
}

// GetPeriod retrieves the period label from the context.
// Returns the label if found, empty string otherwise.
func GetPeriod(ctx context.Context) string {
	if v := ctx.Value(periodKey); v != nil {
		if period, ok := v.(string); ok && period != "" {
			return period
		}
	}
	return ""
}

// PreserveTracing creates a detached context that preserves tracing values.
// The new context is independent of the parent's cancellation and deadlines.
//
// This function creates a fresh context.Background() and copies only tracing values,
// avoiding memory leaks from retaining parent context references (Go issue #64478).
//
// Use for async operations that need tracing but must outlive the parent context,
// such as archive uploads that continue after a harvest pair completes.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		newCtx = WithRequestID(newCtx, requestID)
	}
	if runID := GetRunID(ctx); runID != "" {
		newCtx = WithRunID(newCtx, runID)
	}
	if cedula := GetCedula(ctx); cedula != "" {
		newCtx = WithCedula(newCtx, cedula)
	}
	if period := GetPeriod(ctx); period != "" {
		newCtx = WithPeriod(newCtx, period)
	}

	return newCtx
}
