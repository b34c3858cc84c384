package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewTestDB()
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleDoc(cedula string, period asignacion.Period) *asignacion.FacultyDocument {
	return &asignacion.FacultyDocument{
		Cedula: cedula,
		Period: period,
		Personal: asignacion.PersonalInfo{
			Cedula:          cedula,
			Nombre:          "MARÍA",
			PrimerApellido:  "LÓPEZ",
			SegundoApellido: "RUIZ",
			UnidadAcademica: "ESCUELA DE INGENIERÍA DE SISTEMAS",
			Vinculacion:     "NOMBRADO",
			Dedicacion:      "T.C.",
		},
		Undergraduate: []asignacion.CourseActivity{
			{Codigo: "111045C", Grupo: "01", Tipo: "TEORIA", Nombre: "CÁLCULO I", Cred: "3", Horas: "64"},
		},
	}
}

// backdate rewrites a cached document's timestamp so TTL paths can be tested.
func backdate(t *testing.T, db *DB, cedula, periodo string, age time.Duration) {
	t.Helper()
	past := time.Now().Add(-age).Unix()
	_, err := db.Writer().ExecContext(context.Background(),
		"UPDATE documents SET cached_at = ? WHERE cedula = ? AND periodo = ?",
		past, cedula, periodo)
	if err != nil {
		t.Fatalf("Failed to backdate document: %v", err)
	}
}

func TestSaveAndGetDocument(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	period := asignacion.Period{ID: 49, Year: 2026, Term: 1, Label: "2026-1"}
	doc := sampleDoc("12345678", period)
	doc.Thesis = []asignacion.ThesisActivity{
		{CodigoEstudiante: "201812345", CodPlan: "3743", Titulo: "MODELO DE OPTIMIZACIÓN", Horas: "4"},
	}

	if err := db.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	got, err := db.GetDocument(ctx, "12345678", "2026-1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected document, got nil")
	}
	if got.Personal.FullName() != "MARÍA LÓPEZ RUIZ" {
		t.Errorf("FullName = %q, want %q", got.Personal.FullName(), "MARÍA LÓPEZ RUIZ")
	}
	if len(got.Undergraduate) != 1 || got.Undergraduate[0].Nombre != "CÁLCULO I" {
		t.Errorf("Undergraduate activities not preserved: %+v", got.Undergraduate)
	}
	if len(got.Thesis) != 1 || got.Thesis[0].Titulo != "MODELO DE OPTIMIZACIÓN" {
		t.Errorf("Thesis activities not preserved: %+v", got.Thesis)
	}
}

func TestGetDocument_CacheMiss(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	got, err := db.GetDocument(context.Background(), "00000000", "2026-1")
	if err != nil {
		t.Fatalf("GetDocument on empty cache returned error: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for unknown document, got %+v", got)
	}
}

func TestGetDocument_Expired(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	period := asignacion.Period{ID: 49, Year: 2026, Term: 1, Label: "2026-1"}
	if err := db.SaveDocument(ctx, sampleDoc("12345678", period)); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	backdate(t, db, "12345678", "2026-1", 25*time.Hour)

	got, err := db.GetDocument(ctx, "12345678", "2026-1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected expired document to read as a miss, got %+v", got)
	}
}

func TestSaveDocument_Upsert(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	period := asignacion.Period{ID: 49, Year: 2026, Term: 1, Label: "2026-1"}
	doc := sampleDoc("12345678", period)
	if err := db.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	doc.Undergraduate = append(doc.Undergraduate, asignacion.CourseActivity{
		Codigo: "111046C", Grupo: "02", Tipo: "TEORIA", Nombre: "CÁLCULO II", Horas: "64",
	})
	if err := db.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument upsert failed: %v", err)
	}

	got, err := db.GetDocument(ctx, "12345678", "2026-1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got == nil || len(got.Undergraduate) != 2 {
		t.Errorf("Upsert did not replace payload, got %+v", got)
	}

	count, err := db.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 1 {
		t.Errorf("CountDocuments = %d, want 1", count)
	}
}

func TestSaveDocumentsBatch(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	docs := []*asignacion.FacultyDocument{
		sampleDoc("11111111", asignacion.Period{ID: 49, Year: 2026, Term: 1, Label: "2026-1"}),
		sampleDoc("11111111", asignacion.Period{ID: 48, Year: 2025, Term: 2, Label: "2025-2"}),
		sampleDoc("22222222", asignacion.Period{ID: 49, Year: 2026, Term: 1, Label: "2026-1"}),
	}
	if err := db.SaveDocumentsBatch(ctx, docs); err != nil {
		t.Fatalf("SaveDocumentsBatch failed: %v", err)
	}

	count, err := db.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 3 {
		t.Errorf("CountDocuments = %d, want 3", count)
	}
}

func TestGetDocumentsByCedula(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	docs := []*asignacion.FacultyDocument{
		sampleDoc("12345678", asignacion.Period{ID: 47, Year: 2025, Term: 1, Label: "2025-1"}),
		sampleDoc("12345678", asignacion.Period{ID: 49, Year: 2026, Term: 1, Label: "2026-1"}),
		sampleDoc("12345678", asignacion.Period{ID: 48, Year: 2025, Term: 2, Label: "2025-2"}),
		sampleDoc("99999999", asignacion.Period{ID: 49, Year: 2026, Term: 1, Label: "2026-1"}),
	}
	if err := db.SaveDocumentsBatch(ctx, docs); err != nil {
		t.Fatalf("SaveDocumentsBatch failed: %v", err)
	}
	backdate(t, db, "12345678", "2025-1", 25*time.Hour)

	got, err := db.GetDocumentsByCedula(ctx, "12345678")
	if err != nil {
		t.Fatalf("GetDocumentsByCedula failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 fresh documents, got %d", len(got))
	}
	// Most recent period first.
	if got[0].Period.Label != "2026-1" || got[1].Period.Label != "2025-2" {
		t.Errorf("Wrong period ordering: %q then %q", got[0].Period.Label, got[1].Period.Label)
	}
}

func TestGetDocumentsByPeriodo(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	period := asignacion.Period{ID: 49, Year: 2026, Term: 1, Label: "2026-1"}
	docs := []*asignacion.FacultyDocument{
		sampleDoc("22222222", period),
		sampleDoc("11111111", period),
		sampleDoc("33333333", asignacion.Period{ID: 48, Year: 2025, Term: 2, Label: "2025-2"}),
	}
	if err := db.SaveDocumentsBatch(ctx, docs); err != nil {
		t.Fatalf("SaveDocumentsBatch failed: %v", err)
	}

	got, err := db.GetDocumentsByPeriodo(ctx, "2026-1")
	if err != nil {
		t.Fatalf("GetDocumentsByPeriodo failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 documents for 2026-1, got %d", len(got))
	}
	if got[0].Cedula != "11111111" || got[1].Cedula != "22222222" {
		t.Errorf("Wrong cedula ordering: %q then %q", got[0].Cedula, got[1].Cedula)
	}
}

func TestSearchDocumentsByName(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	period := asignacion.Period{ID: 49, Year: 2026, Term: 1, Label: "2026-1"}
	garcia := sampleDoc("11111111", period)
	garcia.Personal.Nombre = "JOSÉ"
	garcia.Personal.PrimerApellido = "GARCÍA"
	garcia.Personal.SegundoApellido = "MUÑOZ"

	lopez := sampleDoc("22222222", period)

	if err := db.SaveDocumentsBatch(ctx, []*asignacion.FacultyDocument{garcia, lopez}); err != nil {
		t.Fatalf("SaveDocumentsBatch failed: %v", err)
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"accent insensitive", "garcia", []string{"11111111"}},
		{"case insensitive", "LOPEZ", []string{"22222222"}},
		{"folded enie", "munoz", []string{"11111111"}},
		{"partial name", "mar", []string{"22222222"}},
		{"no match", "rodríguez", nil},
		{"wildcard is literal", "gar%ia", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.SearchDocumentsByName(ctx, tt.query)
			if err != nil {
				t.Fatalf("SearchDocumentsByName(%q) failed: %v", tt.query, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("SearchDocumentsByName(%q) returned %d results, want %d", tt.query, len(got), len(tt.want))
			}
			for i, cedula := range tt.want {
				if got[i].Cedula != cedula {
					t.Errorf("Result %d cedula = %q, want %q", i, got[i].Cedula, cedula)
				}
			}
		})
	}
}

func TestSearchDocumentsByName_TooLong(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	_, err := db.SearchDocumentsByName(context.Background(), strings.Repeat("a", 101))
	if err == nil {
		t.Error("Expected error for oversized search term")
	}
}

func TestPeriodoCounts(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	docs := []*asignacion.FacultyDocument{
		sampleDoc("11111111", asignacion.Period{ID: 49, Year: 2026, Term: 1, Label: "2026-1"}),
		sampleDoc("22222222", asignacion.Period{ID: 49, Year: 2026, Term: 1, Label: "2026-1"}),
		sampleDoc("11111111", asignacion.Period{ID: 48, Year: 2025, Term: 2, Label: "2025-2"}),
	}
	if err := db.SaveDocumentsBatch(ctx, docs); err != nil {
		t.Fatalf("SaveDocumentsBatch failed: %v", err)
	}

	counts, err := db.PeriodoCounts(ctx)
	if err != nil {
		t.Fatalf("PeriodoCounts failed: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("Expected 2 periods, got %d", len(counts))
	}
	if counts[0].Periodo != "2026-1" || counts[0].Count != 2 {
		t.Errorf("counts[0] = %+v, want 2026-1 with 2", counts[0])
	}
	if counts[1].Periodo != "2025-2" || counts[1].Count != 1 {
		t.Errorf("counts[1] = %+v, want 2025-2 with 1", counts[1])
	}
}

func TestDeleteExpiredDocuments(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	period := asignacion.Period{ID: 49, Year: 2026, Term: 1, Label: "2026-1"}
	for _, cedula := range []string{"11111111", "22222222"} {
		if err := db.SaveDocument(ctx, sampleDoc(cedula, period)); err != nil {
			t.Fatalf("SaveDocument failed: %v", err)
		}
	}
	backdate(t, db, "22222222", "2026-1", 48*time.Hour)

	deleted, err := db.DeleteExpiredDocuments(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteExpiredDocuments failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteExpiredDocuments = %d, want 1", deleted)
	}

	count, err := db.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 1 {
		t.Errorf("CountDocuments after cleanup = %d, want 1", count)
	}
}

func TestSheetMeta(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	meta := &SheetMeta{
		SpreadsheetID: "1AbCdEf",
		Title:         "2026-1",
		SheetID:       123456,
		RowCount:      42,
	}
	if err := db.SaveSheetMeta(ctx, meta); err != nil {
		t.Fatalf("SaveSheetMeta failed: %v", err)
	}

	got, err := db.GetSheetMeta(ctx, "1AbCdEf", "2026-1", time.Hour)
	if err != nil {
		t.Fatalf("GetSheetMeta failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected sheet meta, got nil")
	}
	if got.SheetID != 123456 || got.RowCount != 42 {
		t.Errorf("SheetMeta = %+v, want SheetID 123456 RowCount 42", got)
	}

	// Unknown tab reads as a miss, not an error.
	missing, err := db.GetSheetMeta(ctx, "1AbCdEf", "2025-2", time.Hour)
	if err != nil {
		t.Fatalf("GetSheetMeta for unknown tab failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unknown tab, got %+v", missing)
	}

	// A zero TTL treats every entry as stale.
	stale, err := db.GetSheetMeta(ctx, "1AbCdEf", "2026-1", 0)
	if err != nil {
		t.Fatalf("GetSheetMeta with zero TTL failed: %v", err)
	}
	if stale != nil {
		t.Errorf("Expected stale entry to read as a miss, got %+v", stale)
	}

	if err := db.DeleteSheetMeta(ctx, "1AbCdEf"); err != nil {
		t.Fatalf("DeleteSheetMeta failed: %v", err)
	}
	gone, err := db.GetSheetMeta(ctx, "1AbCdEf", "2026-1", time.Hour)
	if err != nil {
		t.Fatalf("GetSheetMeta after delete failed: %v", err)
	}
	if gone != nil {
		t.Errorf("Expected nil after delete, got %+v", gone)
	}
}
