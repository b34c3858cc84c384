package asignacion

import "strings"

// canonicalTokens is every header spelling the personal mappers write
// to. The header-leak guard rejects values equal to any of these, which
// is what a misaligned two-column table produces.
var canonicalTokens = map[string]bool{
	"CEDULA":           true,
	"NOMBRE":           true,
	"APELLIDO":         true,
	"APELLIDOS":        true,
	"1 APELLIDO":       true,
	"2 APELLIDO":       true,
	"PRIMER APELLIDO":  true,
	"SEGUNDO APELLIDO": true,
	"UNIDAD ACADEMICA": true,
	"VINCULACION":      true,
	"CATEGORIA":        true,
	"DEDICACION":       true,
	"NIVEL ALCANZADO":  true,
	"CARGO":            true,
}

const maxPersonalValueLen = 50

// ValidPersonalValue is the header-leak guard: a candidate personal
// value must be non-empty, shorter than 50 characters, and must not be
// one of the header tokens themselves.
func ValidPersonalValue(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	if len([]rune(v)) >= maxPersonalValueLen {
		return false
	}
	normalized := strings.Join(strings.Fields(strings.ReplaceAll(strings.ToUpper(v), "-", " ")), " ")
	return !canonicalTokens[normalized]
}

func setIfValid(field *string, value string) {
	if *field == "" && ValidPersonalValue(value) {
		*field = strings.TrimSpace(value)
	}
}

// ApplyPersonalRow maps one header/value row pair onto the personal
// record and preserves every pair in the raw side-band.
func ApplyPersonalRow(p *PersonalInfo, header, upperHeader, cells []string) {
	if p.Raw == nil {
		p.Raw = make(map[string]string)
	}
	for i, h := range upperHeader {
		if i >= len(cells) {
			break
		}
		value := strings.TrimSpace(cells[i])
		if key := strings.TrimSpace(header[i]); key != "" {
			p.Raw[key] = value
		}
		applyPersonalField(p, h, value)
	}
}

// ApplyPersonalPair maps a single label/value pair, the shape vertical
// two-column tables produce.
func ApplyPersonalPair(p *PersonalInfo, upperLabel, value string) {
	if p.Raw == nil {
		p.Raw = make(map[string]string)
	}
	if key := strings.TrimSpace(upperLabel); key != "" {
		if _, exists := p.Raw[key]; !exists {
			p.Raw[key] = strings.TrimSpace(value)
		}
	}
	applyPersonalField(p, upperLabel, value)
}

func applyPersonalField(p *PersonalInfo, upperHeader, value string) {
	h := upperHeader
	switch {
	case strings.Contains(h, "CEDULA"), strings.Contains(h, "DOCUMENTO"), strings.Contains(h, "IDENTIFICACION"):
		setIfValid(&p.Cedula, value)
	case strings.Contains(h, "APELLIDO"):
		switch {
		case strings.Contains(h, "1") || strings.Contains(h, "PRIMER"):
			setIfValid(&p.PrimerApellido, value)
		case strings.Contains(h, "2") || strings.Contains(h, "SEGUNDO"):
			setIfValid(&p.SegundoApellido, value)
		case p.PrimerApellido == "":
			setIfValid(&p.PrimerApellido, value)
		default:
			setIfValid(&p.SegundoApellido, value)
		}
	case strings.Contains(h, "NOMBRE") && !strings.Contains(h, "ASIGNATURA"):
		setIfValid(&p.Nombre, value)
	case strings.Contains(h, "DOCENTE"):
		setIfValid(&p.Nombre, value)
	case strings.Contains(h, "UNIDAD"):
		setIfValid(&p.UnidadAcademica, value)
	case strings.Contains(h, "VINCULACION"):
		setIfValid(&p.Vinculacion, value)
	case strings.Contains(h, "CATEGORIA"):
		setIfValid(&p.Categoria, value)
	case strings.Contains(h, "DEDICACION"):
		setIfValid(&p.Dedicacion, value)
	case strings.Contains(h, "NIVEL"):
		setIfValid(&p.NivelAlcanzado, value)
	case strings.Contains(h, "CARGO"):
		setIfValid(&p.Cargo, value)
	}
}

// SweepPersonalRaw back-fills the four additional-info fields from the
// raw side-band after every table has been seen. Values pass the same
// guard as direct assignment.
func SweepPersonalRaw(p *PersonalInfo) {
	for _, header := range sortedHeaders(p.Raw) {
		h := strings.ToUpper(header)
		v := p.Raw[header]
		switch {
		case strings.Contains(h, "VINCULACION"):
			setIfValid(&p.Vinculacion, v)
		case strings.Contains(h, "CATEGORIA"):
			setIfValid(&p.Categoria, v)
		case strings.Contains(h, "DEDICACION"):
			setIfValid(&p.Dedicacion, v)
		case strings.Contains(h, "NIVEL"):
			setIfValid(&p.NivelAlcanzado, v)
		}
	}
}

func horasHeader(upperHeader string) bool {
	if !strings.Contains(upperHeader, "HORAS") {
		return false
	}
	return strings.Contains(upperHeader, "SEMESTRE") || !strings.Contains(upperHeader, "TOTAL")
}

// NormalizeCourse maps an aligned header/cell pair onto a course row.
// Rows with neither code nor name are discarded.
func NormalizeCourse(upperHeader, cells []string) (CourseActivity, bool) {
	var c CourseActivity
	for i, h := range upperHeader {
		if i >= len(cells) {
			break
		}
		v := strings.TrimSpace(cells[i])
		if v == "" {
			continue
		}
		switch {
		case strings.Contains(h, "CODIGO") && !strings.Contains(h, "ESTUDIANTE"):
			setIfEmpty(&c.Codigo, v)
		case strings.Contains(h, "GRUPO"):
			setIfEmpty(&c.Grupo, v)
		case strings.Contains(h, "TIPO"):
			setIfEmpty(&c.Tipo, v)
		case strings.Contains(h, "NOMBRE") && strings.Contains(h, "ASIGNATURA"):
			setIfEmpty(&c.Nombre, v)
		case strings.Contains(h, "CRED"):
			setIfEmpty(&c.Cred, v)
		case strings.Contains(h, "PORC"):
			setIfEmpty(&c.Porc, v)
		case strings.Contains(h, "FREC"):
			setIfEmpty(&c.Frec, v)
		case strings.Contains(h, "INTEN"):
			setIfEmpty(&c.Inten, v)
		case horasHeader(h):
			setIfEmpty(&c.Horas, v)
		}
	}
	if c.Codigo == "" && c.Nombre == "" {
		return CourseActivity{}, false
	}
	return c, true
}

// NormalizeThesis maps an aligned header/cell pair onto a thesis row.
// When the table reached us through the anteproyecto wording, that
// column's value stands in for the title if no title column exists.
func NormalizeThesis(upperHeader, cells []string) (ThesisActivity, bool) {
	var th ThesisActivity
	var anteproyecto string
	for i, h := range upperHeader {
		if i >= len(cells) {
			break
		}
		v := strings.TrimSpace(cells[i])
		if v == "" {
			continue
		}
		switch {
		case strings.Contains(h, "CODIGO") && strings.Contains(h, "ESTUDIANTE"):
			setIfEmpty(&th.CodigoEstudiante, v)
		case strings.Contains(h, "PLAN"):
			setIfEmpty(&th.CodPlan, v)
		case strings.Contains(h, "TITULO"):
			setIfEmpty(&th.Titulo, v)
		case strings.Contains(h, "ANTEPROYECTO"),
			strings.Contains(h, "PROPUESTA") && strings.Contains(h, "INVESTIGACION"):
			if anteproyecto == "" {
				anteproyecto = v
			}
		case horasHeader(h):
			setIfEmpty(&th.Horas, v)
		}
	}
	if th.Titulo == "" && anteproyecto != "" {
		th.Titulo = anteproyecto
	}
	if th.CodigoEstudiante == "" && th.Titulo == "" {
		return ThesisActivity{}, false
	}
	return th, true
}

// NormalizeGeneric preserves the whole row as header/value pairs plus
// the canonical hours slot. Rows with no values at all are dropped.
func NormalizeGeneric(header, upperHeader, cells []string) (GenericActivity, bool) {
	a := GenericActivity{Raw: make(map[string]string, len(header))}
	hasValue := false
	for i, h := range header {
		if i >= len(cells) {
			break
		}
		v := strings.TrimSpace(cells[i])
		if key := strings.TrimSpace(h); key != "" {
			a.Raw[key] = v
		}
		if v != "" {
			hasValue = true
		}
		if a.Horas == "" && i < len(upperHeader) && horasHeader(upperHeader[i]) {
			a.Horas = v
		}
	}
	if !hasValue {
		return GenericActivity{}, false
	}
	return a, true
}

func setIfEmpty(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
