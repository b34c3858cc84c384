package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	run := asignacion.NewHarvestRun(
		[]string{"12345678", "87654321"},
		testPeriods,
	)
	run.Documents = append(run.Documents,
		asignacion.FacultyDocument{Cedula: "12345678", Period: testPeriods[0]},
		asignacion.FacultyDocument{Cedula: "12345678", Period: testPeriods[1]},
		asignacion.FacultyDocument{Cedula: "87654321", Period: testPeriods[0]},
	)
	run.RecordError("87654321", "2025-2", "HTTP 500 from portal")
	run.CriticalErrors = append(run.CriticalErrors, "sheet flush exhausted retries")

	stats := &Stats{}
	stats.Fetched.Store(2)
	stats.CacheHits.Store(1)
	stats.Failed.Store(1)

	out := Summarize(run, stats, 95*time.Second)

	assert.Contains(t, out, "2 cedulas x 2 periodos in 1m35s")
	assert.Contains(t, out, "documents: 3 (fetched 2, cache 1)")
	assert.Contains(t, out, "2026-1: 2")
	assert.Contains(t, out, "2025-2: 1")
	assert.Contains(t, out, "failures (1 pairs)")
	assert.Contains(t, out, "87654321: 2025-2 (HTTP 500 from portal)")
	assert.Contains(t, out, "sheet flush exhausted retries")
}

func TestSummarize_CleanRun(t *testing.T) {
	t.Parallel()

	run := asignacion.NewHarvestRun([]string{"12345678"}, testPeriods[:1])
	run.Documents = append(run.Documents,
		asignacion.FacultyDocument{Cedula: "12345678", Period: testPeriods[0]})

	stats := &Stats{}
	stats.Fetched.Store(1)

	out := Summarize(run, stats, 3*time.Second)

	assert.Contains(t, out, "documents: 1")
	assert.NotContains(t, out, "failures")
	assert.NotContains(t, out, "critical")
}
