// Package asignacion holds the academic-assignment domain model and the
// pure logic that builds it: period handling, row normalization,
// document assembly and flattening. Nothing here touches the network or
// storage; the scraper and harvest packages drive these functions.
package asignacion

import "time"

// Period is one academic semester as the portal lists it. The id is the
// portal's opaque option value; label is always "YYYY-T" with no zero
// padding on the term.
type Period struct {
	ID    int    `json:"id"`
	Year  int    `json:"year"`
	Term  int    `json:"term"`
	Label string `json:"label"`
}

// PersonalInfo collects the identity tables of a document. Raw keeps
// every header/value pair as scraped so fields the canonical set misses
// stay inspectable.
type PersonalInfo struct {
	Cedula          string            `json:"cedula"`
	Nombre          string            `json:"nombre"`
	PrimerApellido  string            `json:"primer_apellido"`
	SegundoApellido string            `json:"segundo_apellido"`
	UnidadAcademica string            `json:"unidad_academica"`
	Vinculacion     string            `json:"vinculacion"`
	Categoria       string            `json:"categoria"`
	Dedicacion      string            `json:"dedicacion"`
	NivelAlcanzado  string            `json:"nivel_alcanzado"`
	Cargo           string            `json:"cargo"`
	Raw             map[string]string `json:"raw,omitempty"`
}

// FullName joins the name parts the portal splits across columns.
func (p PersonalInfo) FullName() string {
	return joinNonEmpty(" ", p.Nombre, p.PrimerApellido, p.SegundoApellido)
}

// CourseActivity is one taught course row. All values stay strings;
// hours become numeric only when flattened.
type CourseActivity struct {
	Codigo string `json:"codigo"`
	Grupo  string `json:"grupo"`
	Tipo   string `json:"tipo"`
	Nombre string `json:"nombre"`
	Cred   string `json:"cred"`
	Porc   string `json:"porc"`
	Frec   string `json:"frec"`
	Inten  string `json:"inten"`
	Horas  string `json:"horas"`
}

// ThesisActivity is one directed thesis row.
type ThesisActivity struct {
	CodigoEstudiante string `json:"codigo_estudiante"`
	CodPlan          string `json:"cod_plan"`
	Titulo           string `json:"titulo"`
	Horas            string `json:"horas"`
}

// GenericActivity covers the six free-form activity tables: research,
// extension, intellectual, administrative, complementary, commission.
type GenericActivity struct {
	Raw   map[string]string `json:"raw"`
	Horas string            `json:"horas"`
}

// FacultyDocument is the assembled result of one (cedula, period)
// fetch. Immutable once built.
type FacultyDocument struct {
	Cedula         string            `json:"cedula"`
	Period         Period            `json:"period"`
	Personal       PersonalInfo      `json:"personal"`
	Undergraduate  []CourseActivity  `json:"undergraduate"`
	Graduate       []CourseActivity  `json:"graduate"`
	Thesis         []ThesisActivity  `json:"thesis"`
	Research       []GenericActivity `json:"research"`
	Extension      []GenericActivity `json:"extension"`
	Intellectual   []GenericActivity `json:"intellectual"`
	Administrative []GenericActivity `json:"administrative"`
	Complementary  []GenericActivity `json:"complementary"`
	Commission     []GenericActivity `json:"commission"`

	// Unmatched counts tables the classifier dropped, for logging only.
	Unmatched int `json:"-"`
}

// TotalActivities counts every activity row across the nine categories.
func (d FacultyDocument) TotalActivities() int {
	return len(d.Undergraduate) + len(d.Graduate) + len(d.Thesis) +
		len(d.Research) + len(d.Extension) + len(d.Intellectual) +
		len(d.Administrative) + len(d.Complementary) + len(d.Commission)
}

// HasPersonal reports whether the document identified its professor.
func (d FacultyDocument) HasPersonal() bool {
	return d.Personal.Cedula != "" || d.Personal.Nombre != "" || d.Personal.PrimerApellido != ""
}

// PeriodError is one failed (cedula, period) attempt inside a run.
type PeriodError struct {
	Period  string `json:"period"`
	Message string `json:"message"`
}

// HarvestRun accumulates everything one scheduler invocation produced.
// Only the scheduler's consumer loop writes it.
type HarvestRun struct {
	StartedAt       time.Time                `json:"started_at"`
	Cedulas         []string                 `json:"cedulas"`
	Periods         []Period                 `json:"periods"`
	Documents       []FacultyDocument        `json:"documents"`
	PerCedulaErrors map[string][]PeriodError `json:"per_cedula_errors"`
	CriticalErrors  []string                 `json:"critical_errors"`
}

// NewHarvestRun prepares an empty accumulator for the given inputs.
func NewHarvestRun(cedulas []string, periods []Period) *HarvestRun {
	return &HarvestRun{
		StartedAt:       time.Now(),
		Cedulas:         cedulas,
		Periods:         periods,
		PerCedulaErrors: make(map[string][]PeriodError),
	}
}

// RecordError files a per-(cedula, period) failure.
func (r *HarvestRun) RecordError(cedula, period, message string) {
	r.PerCedulaErrors[cedula] = append(r.PerCedulaErrors[cedula], PeriodError{
		Period:  period,
		Message: message,
	})
}

// FailedPairs counts the recorded (cedula, period) failures.
func (r *HarvestRun) FailedPairs() int {
	n := 0
	for _, errs := range r.PerCedulaErrors {
		n += len(errs)
	}
	return n
}
