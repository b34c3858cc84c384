package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}

	// Verify all metric fields are initialized
	if m.PortalRequestsTotal == nil {
		t.Error("PortalRequestsTotal is nil")
	}
	if m.PortalDurationSeconds == nil {
		t.Error("PortalDurationSeconds is nil")
	}
	if m.PagesParsedTotal == nil {
		t.Error("PagesParsedTotal is nil")
	}
	if m.TablesClassified == nil {
		t.Error("TablesClassified is nil")
	}
	if m.UnknownTablesTotal == nil {
		t.Error("UnknownTablesTotal is nil")
	}
	if m.DocumentsHarvested == nil {
		t.Error("DocumentsHarvested is nil")
	}
	if m.RunDuration == nil {
		t.Error("RunDuration is nil")
	}
	if m.RowsEmittedTotal == nil {
		t.Error("RowsEmittedTotal is nil")
	}
	if m.SheetFlushTotal == nil {
		t.Error("SheetFlushTotal is nil")
	}
	if m.CacheHitsTotal == nil {
		t.Error("CacheHitsTotal is nil")
	}
	if m.CacheMissesTotal == nil {
		t.Error("CacheMissesTotal is nil")
	}
	if m.HTTPErrorsTotal == nil {
		t.Error("HTTPErrorsTotal is nil")
	}
	if m.RateLimiterDropped == nil {
		t.Error("RateLimiterDropped is nil")
	}
	if m.JobDuration == nil {
		t.Error("JobDuration is nil")
	}
}

func TestRecordPortalRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordPortalRequest("periods", "success", 1.5)
	m.RecordPortalRequest("document", "error", 2.0)
	m.RecordPortalRequest("document", "empty_page", 0.3)
}

func TestRecordPageParsed(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordPageParsed("success")
	m.RecordPageParsed("empty")
	m.RecordPageParsed("parse_error")
}

func TestRecordTableClassified(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordTableClassified("personal")
	m.RecordTableClassified("pregrado")
	m.RecordTableClassified("tesis")
	m.RecordUnknownTable()
}

func TestRecordDocumentHarvested(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordDocumentHarvested("success")
	m.RecordDocumentHarvested("empty")
	m.RecordDocumentHarvested("error")
}

func TestRecordRowsEmitted(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordRowsEmitted("Pregrado", 12)
	m.RecordRowsEmitted("Investigacion", 3)
	m.RecordSheetFlush("success", 1.2)
	m.RecordSheetFlush("error", 0.4)
}

func TestRecordCacheHit(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordCacheHit("document")
	m.RecordCacheHit("sheet_meta")
	m.RecordCacheMiss("document")
}

func TestRecordHTTPError(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordHTTPError("timeout", "scraper")
	m.RecordHTTPError("rate_limit", "api")
	m.RecordHTTPError("bad_request", "api")
}

func TestRecordRateLimiterDrop(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordRateLimiterDrop("client")
	m.RecordRateLimiterDrop("portal")
	m.SetRateLimiterUsers(7)
}

func TestRecordJob(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordJob("cleanup", 3.5)
	m.RecordJob("snapshot_poll", 0.8)
	m.RecordRunDuration(612.0)
}

func TestGauges(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.SetCacheSize("documents", 1200)
	m.SetCacheSize("runs", 14)
	m.SetIndexSize("bm25", 350)
}

func TestMetrics_WithDefaultRegistry(t *testing.T) {
	// Test that metrics can be created with a new registry
	// without conflicting with default registry
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Record some metrics
	m.RecordPortalRequest("document", "success", 1.0)
	m.RecordCacheHit("document")
	m.RecordDocumentHarvested("success")
	m.RecordRowsEmitted("Pregrado", 5)

	// Gather metrics to verify they were recorded
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	// Should have metrics registered
	if len(metricFamilies) == 0 {
		t.Error("No metrics were gathered")
	}

	// Check for specific metric names
	expectedMetrics := map[string]bool{
		"asignacion_portal_requests_total":     false,
		"asignacion_portal_duration_seconds":   false,
		"asignacion_cache_hits_total":          false,
		"asignacion_documents_harvested_total": false,
		"asignacion_rows_emitted_total":        false,
	}

	for _, mf := range metricFamilies {
		if _, ok := expectedMetrics[mf.GetName()]; ok {
			expectedMetrics[mf.GetName()] = true
		}
	}

	for name, found := range expectedMetrics {
		if !found {
			t.Errorf("Expected metric %q not found", name)
		}
	}
}
