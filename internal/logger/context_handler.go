// Package logger provides structured logging utilities for the application.
package logger

import (
	"context"
	"log/slog"

	"github.com/univalle-dev/asignacion-go/internal/ctxutil"
)

// ContextHandler is a custom slog.Handler that automatically extracts
// tracing values (requestID, runID, cedula, period) from the context and
// adds them as attributes to log records.
//
// This handler wraps another handler and intercepts all logging calls
// to enrich log entries with context values, eliminating the need to
// manually extract and pass these values at every logging call site.
//
// Design pattern: Handler wrapper (decorator pattern)
// Reference: https://betterstack.com/community/guides/logging/golang-contextual-logging/
type ContextHandler struct {
	handler slog.Handler
}

// NewContextHandler creates a new ContextHandler that wraps the provided handler.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
// This delegates to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle processes the log record by extracting context values and adding them
// as attributes before delegating to the wrapped handler.
//
// Context values extracted:
// - request_id: HTTP request ID for log correlation and tracing
// - run_id: harvest run ID so concurrent period fetches can be correlated
// - cedula: faculty cedula currently being processed
// - period: academic period label currently being processed
//
// Note: The context parameter is provided solely to access context values.
// Canceling the context does not affect record processing (per slog.Handler contract).
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	// Extract requestID from context
	if requestID, ok := ctxutil.GetRequestID(ctx); ok && requestID != "" {
		r.AddAttrs(slog.String("request_id", requestID))
	}

	// Extract harvest run ID from context
	if runID := ctxutil.GetRunID(ctx); runID != "" {
		r.AddAttrs(slog.String("run_id", runID))
	}

	// Extract cedula from context
	if cedula := ctxutil.GetCedula(ctx); cedula != "" {
		r.AddAttrs(slog.String("cedula", cedula))
	}

	// Extract period label from context
	if period := ctxutil.GetPeriod(ctx); period != "" {
		r.AddAttrs(slog.String("period", period))
	}

	// Delegate to wrapped handler
	return h.handler.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler whose attributes consist of
// both the receiver's attributes and the arguments.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a new ContextHandler with the given group name prepended
// to the current group name.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}
