package emit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
	domerrors "github.com/univalle-dev/asignacion-go/internal/errors"
	"github.com/univalle-dev/asignacion-go/internal/logger"
	"github.com/univalle-dev/asignacion-go/internal/sheets"
)

// fakeStore records transport calls and can fail on demand.
type fakeStore struct {
	ensured    []string
	appended   map[string][][]string
	failEnsure map[string]error
	failAppend map[string]error
	nextID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		appended:   make(map[string][][]string),
		failEnsure: make(map[string]error),
		failAppend: make(map[string]error),
	}
}

func (f *fakeStore) EnsureSheet(_ context.Context, _, title string, _ []string) (*sheets.SheetInfo, error) {
	if err := f.failEnsure[title]; err != nil {
		return nil, err
	}
	f.ensured = append(f.ensured, title)
	f.nextID++
	return &sheets.SheetInfo{SheetID: f.nextID, Title: title}, nil
}

func (f *fakeStore) AppendRows(_ context.Context, _, title string, rows [][]string) error {
	if err := f.failAppend[title]; err != nil {
		return err
	}
	f.appended[title] = append(f.appended[title], rows...)
	return nil
}

func testPeriods() []asignacion.Period {
	return []asignacion.Period{
		{ID: 49, Year: 2026, Term: 1, Label: "2026-1"},
		{ID: 48, Year: 2025, Term: 2, Label: "2025-2"},
	}
}

func docWithCourse(cedula string, period asignacion.Period, nombre string) *asignacion.FacultyDocument {
	return &asignacion.FacultyDocument{
		Cedula: cedula,
		Period: period,
		Personal: asignacion.PersonalInfo{
			Cedula:         cedula,
			Nombre:         "ANA",
			PrimerApellido: "MORA",
		},
		Undergraduate: []asignacion.CourseActivity{
			{Codigo: "111045C", Grupo: "01", Nombre: nombre, Horas: "64"},
		},
	}
}

func newTestEmitter(store SheetStore) *Emitter {
	return New(store, "spreadsheet-1", logger.New("error"), Options{})
}

func TestPrepareSheetsCreatesEveryPeriodTab(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	e := newTestEmitter(store)

	if err := e.PrepareSheets(context.Background(), testPeriods()); err != nil {
		t.Fatalf("PrepareSheets failed: %v", err)
	}

	if len(store.ensured) != 2 {
		t.Fatalf("Expected 2 ensured tabs, got %d", len(store.ensured))
	}
	if store.ensured[0] != "2026-1" || store.ensured[1] != "2025-2" {
		t.Errorf("Unexpected tab order: %v", store.ensured)
	}
}

func TestPrepareSheetsRunsOnce(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	e := newTestEmitter(store)
	ctx := context.Background()

	if err := e.PrepareSheets(ctx, testPeriods()); err != nil {
		t.Fatalf("First PrepareSheets failed: %v", err)
	}
	if err := e.PrepareSheets(ctx, testPeriods()); err != nil {
		t.Fatalf("Second PrepareSheets failed: %v", err)
	}

	if len(store.ensured) != 2 {
		t.Errorf("Expected preparation to run once, ensured %d tabs", len(store.ensured))
	}
}

func TestPrepareSheetsFailureIsDependencyError(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.failEnsure["2025-2"] = errors.New("quota exceeded")
	e := newTestEmitter(store)

	err := e.PrepareSheets(context.Background(), testPeriods())
	if err == nil {
		t.Fatal("Expected PrepareSheets to fail")
	}
	var depErr *domerrors.DependencyError
	if !errors.As(err, &depErr) {
		t.Errorf("Expected DependencyError, got %T: %v", err, err)
	}
}

func TestFlushRequiresPreparation(t *testing.T) {
	t.Parallel()
	e := newTestEmitter(newFakeStore())
	run := asignacion.NewHarvestRun(nil, testPeriods())

	if _, err := e.FlushAll(context.Background(), run); err == nil {
		t.Fatal("Expected FlushAll to fail before PrepareSheets")
	}
}

func TestAddGroupsRowsByPeriod(t *testing.T) {
	t.Parallel()
	periods := testPeriods()
	e := newTestEmitter(newFakeStore())

	e.Add(docWithCourse("12345678", periods[0], "CÁLCULO I"))
	e.Add(docWithCourse("12345678", periods[1], "CÁLCULO II"))
	e.Add(docWithCourse("87654321", periods[0], "FÍSICA I"))
	e.Add(&asignacion.FacultyDocument{Cedula: "99999999", Period: periods[0]}) // no activities

	if got := e.Pending(); got != 3 {
		t.Errorf("Pending() = %d, want 3", got)
	}
	if len(e.batches["2026-1"]) != 2 {
		t.Errorf("2026-1 batch has %d rows, want 2", len(e.batches["2026-1"]))
	}
	if len(e.batches["2025-2"]) != 1 {
		t.Errorf("2025-2 batch has %d rows, want 1", len(e.batches["2025-2"]))
	}
}

func TestFlushAllWritesOneBatchPerPeriod(t *testing.T) {
	t.Parallel()
	periods := testPeriods()
	store := newFakeStore()
	e := newTestEmitter(store)
	ctx := context.Background()
	run := asignacion.NewHarvestRun([]string{"12345678", "87654321"}, periods)

	if err := e.PrepareSheets(ctx, periods); err != nil {
		t.Fatalf("PrepareSheets failed: %v", err)
	}
	e.Add(docWithCourse("12345678", periods[0], "CÁLCULO I"))
	e.Add(docWithCourse("87654321", periods[0], "FÍSICA I"))
	e.Add(docWithCourse("12345678", periods[1], "CÁLCULO II"))

	written, err := e.FlushAll(ctx, run)
	if err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}
	if written != 3 {
		t.Errorf("FlushAll wrote %d rows, want 3", written)
	}
	if len(run.CriticalErrors) != 0 {
		t.Errorf("Unexpected critical errors: %v", run.CriticalErrors)
	}

	rows := store.appended["2026-1"]
	if len(rows) != 2 {
		t.Fatalf("2026-1 received %d rows, want 2", len(rows))
	}
	// Cedula order is preserved within the period batch.
	if rows[0][0] != "12345678" || rows[1][0] != "87654321" {
		t.Errorf("Row order lost: %q then %q", rows[0][0], rows[1][0])
	}
	if len(rows[0]) != len(asignacion.SheetHeader) {
		t.Errorf("Row has %d columns, want %d", len(rows[0]), len(asignacion.SheetHeader))
	}
}

func TestFlushFailureIsIsolatedPerSheet(t *testing.T) {
	t.Parallel()
	periods := testPeriods()
	store := newFakeStore()
	store.failAppend["2026-1"] = errors.New("backend unavailable")
	e := newTestEmitter(store)
	ctx := context.Background()
	run := asignacion.NewHarvestRun([]string{"12345678"}, periods)

	if err := e.PrepareSheets(ctx, periods); err != nil {
		t.Fatalf("PrepareSheets failed: %v", err)
	}
	e.Add(docWithCourse("12345678", periods[0], "CÁLCULO I"))
	e.Add(docWithCourse("12345678", periods[1], "CÁLCULO II"))

	written, err := e.FlushAll(ctx, run)
	if err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}
	if written != 1 {
		t.Errorf("FlushAll wrote %d rows, want 1", written)
	}
	if len(run.CriticalErrors) != 1 {
		t.Fatalf("Expected 1 critical error, got %v", run.CriticalErrors)
	}
	if !strings.Contains(run.CriticalErrors[0], "2026-1") {
		t.Errorf("Critical error does not name the failed sheet: %q", run.CriticalErrors[0])
	}
	if len(store.appended["2025-2"]) != 1 {
		t.Errorf("Surviving sheet got %d rows, want 1", len(store.appended["2025-2"]))
	}
}
