package asignacion

import (
	"sort"
	"strconv"
	"strings"
)

// Category labels written to the tipo-actividad column. The spellings
// are what the downstream spreadsheet consumers filter on; do not
// change them without coordinating with the sheet owners.
const (
	CategoriaPregrado       = "Pregrado"
	CategoriaPostgrado      = "Postgrado"
	CategoriaTesis          = "Direccion de Tesis"
	CategoriaInvestigacion  = "Investigacion"
	CategoriaExtension      = "Extension"
	CategoriaIntelectual    = "Intelectual/Artistica"
	CategoriaAdministrativa = "Administrativa"
	CategoriaComplementaria = "Complementaria"
	CategoriaComision       = "Comision"

	// ActividadDocencia groups the three teaching categories.
	ActividadDocencia = "Docencia"
)

// SheetHeader is the 15-column header row every period sheet carries,
// in the exact column order of FlatActivityRow.
var SheetHeader = []string{
	"cedula",
	"nombre-profesor",
	"escuela",
	"departamento",
	"tipo-actividad",
	"categoria",
	"nombre-actividad",
	"numero-horas",
	"periodo",
	"detalle-actividad",
	"actividad",
	"vinculacion",
	"dedicacion",
	"nivel",
	"cargo",
}

// FlatActivityRow is one spreadsheet row: a single activity with the
// professor's identity columns repeated on every row.
type FlatActivityRow struct {
	Cedula           string
	NombreProfesor   string
	Escuela          string
	Departamento     string
	TipoActividad    string
	Categoria        string
	NombreActividad  string
	NumeroHoras      float64
	Periodo          string
	DetalleActividad string
	Actividad        string
	Vinculacion      string
	Dedicacion       string
	Nivel            string
	Cargo            string
}

// Columns renders the row in SheetHeader order.
func (r FlatActivityRow) Columns() []string {
	return []string{
		r.Cedula,
		r.NombreProfesor,
		r.Escuela,
		r.Departamento,
		r.TipoActividad,
		r.Categoria,
		r.NombreActividad,
		formatHoras(r.NumeroHoras),
		r.Periodo,
		r.DetalleActividad,
		r.Actividad,
		r.Vinculacion,
		r.Dedicacion,
		r.Nivel,
		r.Cargo,
	}
}

func formatHoras(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

// Flatten expands a document into one row per activity, in category
// order: undergraduate, graduate, thesis, research, extension,
// intellectual, administrative, complementary, commission. The output
// length always equals TotalActivities.
func Flatten(doc FacultyDocument) []FlatActivityRow {
	base := baseRow(doc)
	rows := make([]FlatActivityRow, 0, doc.TotalActivities())

	for _, c := range doc.Undergraduate {
		rows = append(rows, courseRow(base, c, CategoriaPregrado))
	}
	for _, c := range doc.Graduate {
		rows = append(rows, courseRow(base, c, CategoriaPostgrado))
	}
	for _, th := range doc.Thesis {
		row := base
		row.TipoActividad = CategoriaTesis
		row.Actividad = ActividadDocencia
		row.NombreActividad = th.Titulo
		row.DetalleActividad = joinNonEmpty(" - ", th.CodigoEstudiante, th.CodPlan)
		row.NumeroHoras = ParseHoras(th.Horas)
		rows = append(rows, row)
	}

	rows = appendGeneric(rows, base, doc.Research, CategoriaInvestigacion)
	rows = appendGeneric(rows, base, doc.Extension, CategoriaExtension)
	rows = appendGeneric(rows, base, doc.Intellectual, CategoriaIntelectual)
	rows = appendGeneric(rows, base, doc.Administrative, CategoriaAdministrativa)
	rows = appendGeneric(rows, base, doc.Complementary, CategoriaComplementaria)
	rows = appendGeneric(rows, base, doc.Commission, CategoriaComision)

	return rows
}

// baseRow carries the personal columns every flattened row repeats.
func baseRow(doc FacultyDocument) FlatActivityRow {
	cedula := doc.Personal.Cedula
	if cedula == "" {
		cedula = doc.Cedula
	}
	return FlatActivityRow{
		Cedula:         cedula,
		NombreProfesor: doc.Personal.FullName(),
		Escuela:        escuela(doc.Personal),
		Departamento:   rawLookup(doc.Personal.Raw, "DEPARTAMENTO"),
		Periodo:        doc.Period.Label,
		Categoria:      doc.Personal.Categoria,
		Vinculacion:    doc.Personal.Vinculacion,
		Dedicacion:     doc.Personal.Dedicacion,
		Nivel:          doc.Personal.NivelAlcanzado,
		Cargo:          doc.Personal.Cargo,
	}
}

// escuela prefers an explicit ESCUELA header and falls back to the
// academic unit, which is all most documents carry.
func escuela(p PersonalInfo) string {
	if v := rawLookup(p.Raw, "ESCUELA"); v != "" {
		return v
	}
	return p.UnidadAcademica
}

func courseRow(base FlatActivityRow, c CourseActivity, categoria string) FlatActivityRow {
	row := base
	row.TipoActividad = categoria
	row.Actividad = ActividadDocencia
	row.NombreActividad = c.Nombre
	if row.NombreActividad == "" {
		row.NombreActividad = c.Codigo
	}
	row.DetalleActividad = joinNonEmpty(" - ", c.Codigo, c.Grupo, c.Tipo)
	row.NumeroHoras = ParseHoras(c.Horas)
	return row
}

func appendGeneric(rows []FlatActivityRow, base FlatActivityRow, acts []GenericActivity, categoria string) []FlatActivityRow {
	for _, a := range acts {
		row := base
		row.TipoActividad = categoria
		row.Actividad = categoria
		row.NombreActividad = genericName(a)
		row.DetalleActividad = genericDetail(a)
		row.NumeroHoras = ParseHoras(a.Horas)
		rows = append(rows, row)
	}
	return rows
}

// genericNamePriority orders which raw header supplies the activity
// name; the first non-empty match wins.
var genericNamePriority = []string{"NOMBRE", "TITULO", "PROYECTO", "CARGO", "PARTICIPACION", "TIPO"}

func genericName(a GenericActivity) string {
	headers := sortedHeaders(a.Raw)
	for _, token := range genericNamePriority {
		for _, header := range headers {
			if strings.Contains(strings.ToUpper(header), token) && strings.TrimSpace(a.Raw[header]) != "" {
				return a.Raw[header]
			}
		}
	}
	return ""
}

// genericDetail packs the remaining raw pairs into a stable
// "header: value" listing so nothing scraped is lost in the sheet.
func genericDetail(a GenericActivity) string {
	name := genericName(a)
	headers := sortedHeaders(a.Raw)

	parts := make([]string, 0, len(headers))
	for _, h := range headers {
		v := strings.TrimSpace(a.Raw[h])
		if v == "" || v == name || strings.Contains(strings.ToUpper(h), "HORAS") {
			continue
		}
		parts = append(parts, h+": "+v)
	}
	return strings.Join(parts, "; ")
}

func rawLookup(raw map[string]string, token string) string {
	for _, header := range sortedHeaders(raw) {
		if strings.Contains(strings.ToUpper(header), token) {
			return strings.TrimSpace(raw[header])
		}
	}
	return ""
}

func sortedHeaders(raw map[string]string) []string {
	headers := make([]string, 0, len(raw))
	for h := range raw {
		headers = append(headers, h)
	}
	sort.Strings(headers)
	return headers
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, sep)
}
