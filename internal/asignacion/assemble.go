package asignacion

import (
	"strings"

	"github.com/univalle-dev/asignacion-go/internal/classify"
	domerrors "github.com/univalle-dev/asignacion-go/internal/errors"
	"github.com/univalle-dev/asignacion-go/internal/htmltable"
)

// TableObserver receives the classification outcome of every table
// during assembly.
type TableObserver interface {
	RecordTableClassified(kind string)
	RecordUnknownTable()
}

// Assemble builds a FacultyDocument from one decoded portal page. Every
// table is extracted, classified and normalized independently; tables no
// rule matches are counted and dropped. A ParseError means the page had
// no tables at all, or nothing on it could be used.
func Assemble(cedula string, period Period, html string) (*FacultyDocument, error) {
	return AssembleObserved(cedula, period, html, nil)
}

// AssembleObserved is Assemble with per-table classification outcomes
// reported to obs. A nil obs observes nothing.
func AssembleObserved(cedula string, period Period, html string, obs TableObserver) (*FacultyDocument, error) {
	tables := htmltable.Parse(html)
	if len(tables) == 0 {
		return nil, domerrors.NewParseError(cedula, period.Label, "no tables found")
	}

	doc := &FacultyDocument{Cedula: cedula, Period: period}
	for _, t := range tables {
		processTable(doc, t, obs)
	}

	// Back-fill additional-info fields from raw pairs collected anywhere.
	SweepPersonalRaw(&doc.Personal)

	if doc.TotalActivities() == 0 && !doc.HasPersonal() {
		return nil, domerrors.NewParseError(cedula, period.Label, "no recognizable content")
	}
	return doc, nil
}

func processTable(doc *FacultyDocument, t htmltable.Table, obs TableObserver) {
	if len(t.Rows) == 0 {
		return
	}

	header := t.Header()
	kind := classify.Table(header.Upper)
	if obs != nil && kind != classify.KindUnknown {
		obs.RecordTableClassified(kind.String())
	}

	switch kind {
	case classify.KindPersonalInfo:
		applyPersonal(doc, header, t)
	case classify.KindAdditionalInfo:
		applyAdditional(doc, header, t)
	case classify.KindCourses:
		applyCourses(doc, header, t)
	case classify.KindThesis:
		for i := header.Index + 1; i < len(t.Rows); i++ {
			if th, ok := NormalizeThesis(header.Upper, t.Rows[i].Texts()); ok {
				doc.Thesis = append(doc.Thesis, th)
			}
		}
	case classify.KindUnknown:
		// Layout tables wrap content tables; recurse into cells that
		// carry one before giving up on the table.
		nested := nestedTables(t)
		if len(nested) == 0 {
			doc.Unmatched++
			if obs != nil {
				obs.RecordUnknownTable()
			}
			return
		}
		for _, inner := range nested {
			processTable(doc, inner, obs)
		}
	default:
		if target := genericTarget(doc, kind); target != nil {
			for i := header.Index + 1; i < len(t.Rows); i++ {
				if a, ok := NormalizeGeneric(header.Cells, header.Upper, t.Rows[i].Texts()); ok {
					*target = append(*target, a)
				}
			}
		}
	}
}

// applyPersonal maps the first substantive row under the header onto the
// personal record.
func applyPersonal(doc *FacultyDocument, header htmltable.Header, t htmltable.Table) {
	for i := header.Index + 1; i < len(t.Rows); i++ {
		texts := t.Rows[i].Texts()
		if hasNonEmpty(texts) {
			ApplyPersonalRow(&doc.Personal, header.Cells, header.Upper, texts)
			return
		}
	}
}

// additionalLabelTokens decide the layout of an additional-info table: a
// header row naming two or more distinct fields is a real (horizontal)
// header, a single field means label|value rows. Distinctness matters
// because a leaked header repeats the same token across the row.
var additionalLabelTokens = []string{
	"VINCULACION", "CATEGORIA", "DEDICACION", "NIVEL", "UNIDAD", "CARGO",
}

func additionalLabelCount(upper []string) int {
	found := make(map[string]bool)
	for _, cell := range upper {
		for _, tok := range additionalLabelTokens {
			if strings.Contains(cell, tok) {
				found[tok] = true
			}
		}
	}
	return len(found)
}

// applyAdditional handles both layouts the portal uses for the
// additional-info block: aligned header/value columns and vertical
// two-column label|value rows.
func applyAdditional(doc *FacultyDocument, header htmltable.Header, t htmltable.Table) {
	if additionalLabelCount(header.Upper) >= 2 {
		// Horizontal: the header row names the fields, rows below carry
		// the values.
		for i := header.Index + 1; i < len(t.Rows); i++ {
			ApplyPersonalRow(&doc.Personal, header.Cells, header.Upper, t.Rows[i].Texts())
		}
		return
	}

	// Vertical: every two-cell row is one label|value pair, the resolved
	// header row included.
	for _, row := range t.Rows {
		texts := row.Texts()
		if len(texts) == 2 {
			ApplyPersonalPair(&doc.Personal, strings.ToUpper(strings.TrimSpace(texts[0])), texts[1])
		}
	}
}

func applyCourses(doc *FacultyDocument, header htmltable.Header, t htmltable.Table) {
	section := classify.SectionContext(t.Preamble)
	for i := header.Index + 1; i < len(t.Rows); i++ {
		course, ok := NormalizeCourse(header.Upper, t.Rows[i].Texts())
		if !ok {
			continue
		}
		polarity := classify.CoursePolarity(section, course.Nombre, course.Tipo, course.Grupo, course.Codigo)
		if polarity == classify.Graduate {
			doc.Graduate = append(doc.Graduate, course)
		} else {
			doc.Undergraduate = append(doc.Undergraduate, course)
		}
	}
}

func genericTarget(doc *FacultyDocument, kind classify.Kind) *[]GenericActivity {
	switch kind {
	case classify.KindResearch:
		return &doc.Research
	case classify.KindExtension:
		return &doc.Extension
	case classify.KindIntellectual:
		return &doc.Intellectual
	case classify.KindAdministrative:
		return &doc.Administrative
	case classify.KindComplementary:
		return &doc.Complementary
	case classify.KindCommission:
		return &doc.Commission
	}
	return nil
}

// nestedTables re-parses cell contents that carry a nested table.
// Colspan replication repeats a cell verbatim, so consecutive identical
// raws parse once.
func nestedTables(t htmltable.Table) []htmltable.Table {
	var out []htmltable.Table
	for _, row := range t.Rows {
		for i, cell := range row.Cells {
			if i > 0 && row.Cells[i-1].Raw == cell.Raw {
				continue
			}
			if htmltable.ContainsNestedTable(cell.Raw) {
				out = append(out, htmltable.Parse(cell.Raw)...)
			}
		}
	}
	return out
}

func hasNonEmpty(texts []string) bool {
	for _, tx := range texts {
		if strings.TrimSpace(tx) != "" {
			return true
		}
	}
	return false
}
