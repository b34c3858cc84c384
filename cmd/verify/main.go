package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
	"github.com/univalle-dev/asignacion-go/internal/classify"
	"github.com/univalle-dev/asignacion-go/internal/normalize"
)

// Verification results
type verifyResult struct {
	name    string
	passed  bool
	message string
}

func main() {
	fmt.Println("🔍 Asignacion Academica - Data Consistency Verification Tool")
	fmt.Println("============================================================")

	results := []verifyResult{}

	// 1. Verify the spreadsheet header contract
	results = append(results, verifySheetHeader()...)

	// 2. Verify the activity category labels
	results = append(results, verifyCategories()...)

	// 3. Verify table kind classification on canonical headers
	results = append(results, verifyTableKinds()...)

	// 4. Verify course polarity resolution
	results = append(results, verifyPolarity()...)

	// 5. Verify period enumeration
	results = append(results, verifyPeriodEnumeration()...)

	// 6. Verify text repair (mojibake and entities)
	results = append(results, verifyTextRepair()...)

	// Print results
	fmt.Println("\n📊 Verification Results:")
	fmt.Println("========================")

	passedCount := 0
	failedCount := 0

	for _, result := range results {
		status := "❌"
		if result.passed {
			status = "✅"
			passedCount++
		} else {
			failedCount++
		}
		fmt.Printf("%s %s: %s\n", status, result.name, result.message)
	}

	fmt.Printf("\n📈 Summary: %d passed, %d failed\n", passedCount, failedCount)

	if failedCount > 0 {
		os.Exit(1)
	}
}

// verifySheetHeader checks the 15-column header every period sheet uses
func verifySheetHeader() []verifyResult {
	results := []verifyResult{}

	expectedColumns := 15
	actualColumns := len(asignacion.SheetHeader)
	results = append(results, verifyResult{
		name:    "Sheet Header Column Count",
		passed:  actualColumns == expectedColumns,
		message: fmt.Sprintf("Expected %d, got %d", expectedColumns, actualColumns),
	})

	seen := map[string]bool{}
	duplicates := []string{}
	for _, col := range asignacion.SheetHeader {
		if seen[col] {
			duplicates = append(duplicates, col)
		}
		seen[col] = true
	}
	results = append(results, verifyResult{
		name:    "Sheet Header Columns Unique",
		passed:  len(duplicates) == 0,
		message: fmt.Sprintf("Duplicates: %v", duplicates),
	})

	requiredColumns := []string{"cedula", "periodo", "tipo-actividad", "numero-horas"}
	missing := []string{}
	for _, col := range requiredColumns {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	results = append(results, verifyResult{
		name:    "Sheet Header Required Columns",
		passed:  len(missing) == 0,
		message: fmt.Sprintf("Missing: %v", missing),
	})

	return results
}

// verifyCategories checks the nine activity category labels
func verifyCategories() []verifyResult {
	results := []verifyResult{}

	categories := []string{
		asignacion.CategoriaPregrado,
		asignacion.CategoriaPostgrado,
		asignacion.CategoriaTesis,
		asignacion.CategoriaInvestigacion,
		asignacion.CategoriaExtension,
		asignacion.CategoriaIntelectual,
		asignacion.CategoriaAdministrativa,
		asignacion.CategoriaComplementaria,
		asignacion.CategoriaComision,
	}

	expected := 9
	distinct := map[string]bool{}
	empty := 0
	for _, c := range categories {
		distinct[c] = true
		if strings.TrimSpace(c) == "" {
			empty++
		}
	}

	results = append(results, verifyResult{
		name:    "Activity Category Count",
		passed:  len(distinct) == expected && empty == 0,
		message: fmt.Sprintf("Expected %d distinct non-empty labels, got %d distinct, %d empty", expected, len(distinct), empty),
	})

	return results
}

// verifyTableKinds runs the classifier cascade over one canonical
// header vector per table kind observed on the portal
func verifyTableKinds() []verifyResult {
	results := []verifyResult{}

	cases := []struct {
		header []string
		want   classify.Kind
	}{
		{[]string{"CEDULA", "NOMBRES", "APELLIDOS"}, classify.KindPersonalInfo},
		{[]string{"VINCULACION", "CATEGORIA", "DEDICACION"}, classify.KindAdditionalInfo},
		{[]string{"CODIGO", "NOMBRE ASIGNATURA", "TIPO", "GRUPO", "HORAS"}, classify.KindCourses},
		{[]string{"CODIGO", "ESTUDIANTE", "TITULO DE TESIS", "HORAS"}, classify.KindThesis},
		{[]string{"PARTICIPACION EN COMITES", "HORAS"}, classify.KindComplementary},
		{[]string{"TIPO DE COMISION", "HORAS"}, classify.KindCommission},
		{[]string{"PROYECTO DE INVESTIGACION", "HORAS SEMANA"}, classify.KindResearch},
		{[]string{"CARGO", "DESCRIPCION DEL CARGO", "HORAS"}, classify.KindAdministrative},
		{[]string{"TIPO", "NOMBRE", "HORAS SEMESTRE"}, classify.KindExtension},
		{[]string{"TIPO", "NOMBRE", "APROBADO", "HORAS"}, classify.KindIntellectual},
		{[]string{"FOO", "BAR"}, classify.KindUnknown},
	}

	for _, tc := range cases {
		got := classify.Table(tc.header)
		results = append(results, verifyResult{
			name:    "Table Kind: " + tc.want.String(),
			passed:  got == tc.want,
			message: fmt.Sprintf("Header %v resolved to %s", tc.header, got),
		})
	}

	return results
}

// verifyPolarity pins the undergraduate/graduate resolution cascade
func verifyPolarity() []verifyResult {
	results := []verifyResult{}

	cases := []struct {
		name    string
		section classify.Polarity
		nombre  string
		codigo  string
		want    classify.Polarity
	}{
		{"code 4xxx is undergraduate", classify.PolarityUnknown, "CALCULO I", "4567", classify.Undergraduate},
		{"code 7xxx is graduate", classify.PolarityUnknown, "SEMINARIO", "7001", classify.Graduate},
		{"code 617xxx is graduate", classify.PolarityUnknown, "ELECTIVA", "617023", classify.Graduate},
		{"letter M is graduate", classify.PolarityUnknown, "TOPICOS AVANZADOS", "M101", classify.Graduate},
		{"letter L is undergraduate", classify.PolarityUnknown, "LABORATORIO", "L201", classify.Undergraduate},
		{"MAESTRIA keyword beats code", classify.PolarityUnknown, "SEMINARIO DE MAESTRIA", "1234", classify.Graduate},
		{"section context beats everything", classify.Graduate, "CALCULO I", "1234", classify.Graduate},
		{"default is undergraduate", classify.PolarityUnknown, "CURSO", "", classify.Undergraduate},
	}

	for _, tc := range cases {
		got := classify.CoursePolarity(tc.section, tc.nombre, "TEORIA", "01", tc.codigo)
		results = append(results, verifyResult{
			name:    "Course Polarity: " + tc.name,
			passed:  got == tc.want,
			message: fmt.Sprintf("Got %s, want %s", got, tc.want),
		})
	}

	overlap := classify.KeywordOverlap()
	results = append(results, verifyResult{
		name:    "Polarity Keyword Sets Disjoint",
		passed:  len(overlap) == 0,
		message: fmt.Sprintf("Overlap: %v", overlap),
	})

	sectionCases := []struct {
		preamble string
		want     classify.Polarity
	}{
		{"CURSOS DE POSTGRADO", classify.Graduate},
		{"ASIGNATURAS DE PREGRADO", classify.Undergraduate},
		{"ACTIVIDADES", classify.PolarityUnknown},
	}
	for _, tc := range sectionCases {
		got := classify.SectionContext(tc.preamble)
		results = append(results, verifyResult{
			name:    "Section Context: " + tc.preamble,
			passed:  got == tc.want,
			message: fmt.Sprintf("Got %s, want %s", got, tc.want),
		})
	}

	return results
}

// verifyPeriodEnumeration checks the backward walk over academic terms
func verifyPeriodEnumeration() []verifyResult {
	results := []verifyResult{}

	labels, err := asignacion.EnumerateBack("2026-1", 3)
	expected := []string{"2026-1", "2025-2", "2025-1", "2024-2"}

	passed := err == nil && len(labels) == len(expected)
	if passed {
		for i := range expected {
			if labels[i] != expected[i] {
				passed = false
				break
			}
		}
	}
	results = append(results, verifyResult{
		name:    "Period Enumeration Backward Walk",
		passed:  passed,
		message: fmt.Sprintf("EnumerateBack(2026-1, 3) = %v, err = %v", labels, err),
	})

	_, err = asignacion.EnumerateBack("garbage", 3)
	results = append(results, verifyResult{
		name:    "Period Enumeration Rejects Bad Labels",
		passed:  err != nil,
		message: fmt.Sprintf("err = %v", err),
	})

	return results
}

// verifyTextRepair checks mojibake repair and entity decoding
func verifyTextRepair() []verifyResult {
	results := []verifyResult{}

	mojibakeCases := []struct {
		in   string
		want string
	}{
		{"EDUCACIÃ“N", "EDUCACIÓN"},
		{"INVESTIGACIÃN", "INVESTIGACIÓN"},
		{"EspaÃ±ol", "Español"},
	}
	for _, tc := range mojibakeCases {
		got := normalize.RepairMojibake(tc.in)
		results = append(results, verifyResult{
			name:    "Mojibake Repair: " + tc.want,
			passed:  got == tc.want,
			message: fmt.Sprintf("Got %q", got),
		})
	}

	// Idempotence: a second pass must not change repaired text
	repaired := normalize.RepairMojibake("ADMINISTRACIÃ“N PÃºBLICA")
	twice := normalize.RepairMojibake(repaired)
	results = append(results, verifyResult{
		name:    "Mojibake Repair Idempotent",
		passed:  repaired == twice,
		message: fmt.Sprintf("First %q, second %q", repaired, twice),
	})

	entityCases := []struct {
		in   string
		want string
	}{
		{"PEDAGOG&Iacute;A", "PEDAGOGÍA"},
		{"DISE&Ntilde;O", "DISEÑO"},
		{"A &amp; B", "A & B"},
		{"&copy;", "&copy;"}, // outside the portal's entity set, passes through
	}
	for _, tc := range entityCases {
		got := normalize.DecodeEntities(tc.in)
		results = append(results, verifyResult{
			name:    "Entity Decode: " + tc.in,
			passed:  got == tc.want,
			message: fmt.Sprintf("Got %q", got),
		})
	}

	return results
}
