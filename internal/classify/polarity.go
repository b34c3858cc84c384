package classify

import (
	"regexp"
	"strings"
)

// Polarity is the undergraduate/graduate resolution of a course row.
type Polarity int

const (
	PolarityUnknown Polarity = iota
	Undergraduate
	Graduate
)

func (p Polarity) String() string {
	switch p {
	case Undergraduate:
		return "undergraduate"
	case Graduate:
		return "graduate"
	default:
		return "unknown"
	}
}

// graduateKeywords and undergraduateKeywords carry the accented and
// unaccented spellings seen in the wild; the portal mixes both freely.
var graduateKeywords = []string{
	"MAESTRIA", "MAESTRÍA", "MAGISTER", "MASTER", "MAESTR",
	"DOCTORADO", "DOCTORAL", "PHD", "DOCTOR",
	"ESPECIALIZA", "ESPECIALIZACION", "ESPECIALIZACIÓN",
	"POSTGRADO", "POSGRADO", "POST-GRADO", "POST GRADO",
	"POSTGRADUADO", "POSGRADUADO",
}

var undergraduateKeywords = []string{
	"LICENCIATURA", "INGENIERIA", "INGENERÍA", "BACHILLERATO",
	"TECNOLOGIA", "TECNOLOGÍA", "PROFESIONAL", "CARRERA",
	"PREGRADO", "PRIMER CICLO", "UNDERGRADUATE",
	"TECNICO", "TÉCNICO",
}

// Code prefix rules, applied to the digit-only form of the course code.
// Graduate programs at the university sit in the 6x7xx-6x9xx and
// 7xx-9xx ranges; everything in 1xxx-5xxx is an undergraduate plan.
var (
	grad617RE  = regexp.MustCompile(`^61[7-9]\d{2,}$`)
	grad7to9RE = regexp.MustCompile(`^[7-9]\d{2,}$`)
	grad07RE   = regexp.MustCompile(`^0[7-9]\d{2,}$`)
	grad627RE  = regexp.MustCompile(`^62[7-9]\d{2,}$`)
	under15RE  = regexp.MustCompile(`^[1-5]\d{3,}$`)
	under01RE  = regexp.MustCompile(`^0[1-6]\d{2,}$`)
	under6RE   = regexp.MustCompile(`^6\d{3,}$`)
)

const (
	graduateLetters      = "MDEP"
	undergraduateLetters = "LITB"
)

// KeywordOverlap returns tokens present in both polarity keyword sets.
// The cascade resolves an overlap silently (graduate scans first), so
// the verify tool flags any as a table maintenance mistake.
func KeywordOverlap() []string {
	var overlap []string
	for _, g := range graduateKeywords {
		for _, u := range undergraduateKeywords {
			if g == u {
				overlap = append(overlap, g)
			}
		}
	}
	return overlap
}

// SectionContext derives a polarity from the subtitle text above a
// table, when the page provides one. Returns PolarityUnknown when the
// text names neither level.
func SectionContext(preamble string) Polarity {
	upper := strings.ToUpper(preamble)
	for _, kw := range graduateKeywords {
		if strings.Contains(upper, kw) {
			return Graduate
		}
	}
	for _, kw := range undergraduateKeywords {
		if strings.Contains(upper, kw) {
			return Undergraduate
		}
	}
	return PolarityUnknown
}

// CoursePolarity resolves one course row. The cascade: section context,
// graduate keywords, undergraduate keywords, numeric code prefixes,
// leading letter, default undergraduate. Total over all inputs.
func CoursePolarity(section Polarity, nombre, tipo, grupo, codigo string) Polarity {
	if section == Undergraduate || section == Graduate {
		return section
	}

	text := strings.ToUpper(nombre + " " + tipo + " " + grupo)
	for _, kw := range graduateKeywords {
		if strings.Contains(text, kw) {
			return Graduate
		}
	}
	for _, kw := range undergraduateKeywords {
		if strings.Contains(text, kw) {
			return Undergraduate
		}
	}

	if p := codePolarity(digitsOnly(codigo)); p != PolarityUnknown {
		return p
	}

	if p := letterPolarity(codigo); p != PolarityUnknown {
		return p
	}

	return Undergraduate
}

func codePolarity(digits string) Polarity {
	if digits == "" {
		return PolarityUnknown
	}
	switch {
	case grad617RE.MatchString(digits):
		return Graduate
	case grad7to9RE.MatchString(digits):
		return Graduate
	case grad07RE.MatchString(digits):
		return Graduate
	case grad627RE.MatchString(digits):
		return Graduate
	case len(digits) >= 4 && !between(digits[0], '1', '6') && between(digits[1], '7', '9'):
		return Graduate
	case under15RE.MatchString(digits):
		return Undergraduate
	case under01RE.MatchString(digits):
		return Undergraduate
	case under6RE.MatchString(digits):
		second := digits[1]
		if second == '0' || second == '3' || second == '4' || second == '5' || second == '6' || second == '9' {
			return Undergraduate
		}
		if (second == '1' || second == '2') && !between(digits[2], '7', '9') {
			return Undergraduate
		}
	}
	return PolarityUnknown
}

func letterPolarity(codigo string) Polarity {
	trimmed := strings.TrimSpace(strings.ToUpper(codigo))
	if trimmed == "" {
		return PolarityUnknown
	}
	first := trimmed[0]
	if strings.IndexByte(graduateLetters, first) >= 0 {
		return Graduate
	}
	if strings.IndexByte(undergraduateLetters, first) >= 0 {
		return Undergraduate
	}
	return PolarityUnknown
}

func between(b, lo, hi byte) bool {
	return b >= lo && b <= hi
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
