// Package classify decides what each extracted table and course row
// represents. Both classifiers are prioritized rule vectors: an ordered
// list of (predicate, outcome) pairs evaluated top-down, first match
// wins. The portal has no schema, so the rules encode years of observed
// header vocabulary rather than any documented format.
package classify

import "strings"

// Kind is the table category a header vector resolves to.
type Kind int

const (
	KindUnknown Kind = iota
	KindPersonalInfo
	KindAdditionalInfo
	KindCourses
	KindThesis
	KindComplementary
	KindCommission
	KindResearch
	KindAdministrative
	KindExtension
	KindIntellectual
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindPersonalInfo:   "personal_info",
	KindAdditionalInfo: "additional_info",
	KindCourses:        "courses",
	KindThesis:         "thesis",
	KindComplementary:  "complementary",
	KindCommission:     "commission",
	KindResearch:       "research",
	KindAdministrative: "administrative",
	KindExtension:      "extension",
	KindIntellectual:   "intellectual",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// headerSet wraps the uppercased header cells with the containment
// checks the rules are written in.
type headerSet []string

// has reports whether any header cell contains tok.
func (h headerSet) has(tok string) bool {
	for _, cell := range h {
		if strings.Contains(cell, tok) {
			return true
		}
	}
	return false
}

// hasAny reports whether any header cell contains at least one token.
func (h headerSet) hasAny(toks ...string) bool {
	for _, tok := range toks {
		if h.has(tok) {
			return true
		}
	}
	return false
}

// hasAll reports whether a single header cell contains every token.
func (h headerSet) hasAll(toks ...string) bool {
	for _, cell := range h {
		all := true
		for _, tok := range toks {
			if !strings.Contains(cell, tok) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// strongThesisIndicator is what lets a table keep the thesis
// classification even when anteproyecto/propuesta wording pulls it
// toward research.
func strongThesisIndicator(h headerSet) bool {
	return h.hasAll("CODIGO", "ESTUDIANTE") ||
		h.hasAll("TITULO", "TESIS") ||
		h.hasAll("DIRECCION", "TESIS")
}

func researchWording(h headerSet) bool {
	return h.has("ANTEPROYECTO") || (h.has("PROPUESTA") && h.has("INVESTIGACION"))
}

type tableRule struct {
	name  string
	kind  Kind
	match func(headerSet) bool
}

// tableRules is the classification cascade. Order is the contract:
// personal and additional info first so the looser activity rules never
// steal their headers, thesis before research so the anti-rule can
// arbitrate, extension before intellectual because only APROBADO
// separates them.
var tableRules = []tableRule{
	{
		name: "personal_info",
		kind: KindPersonalInfo,
		match: func(h headerSet) bool {
			return h.hasAny("CEDULA", "DOCUMENTO", "DOCENTES", "IDENTIFICACION") &&
				h.hasAny("APELLIDO", "NOMBRE")
		},
	},
	{
		name: "additional_info",
		kind: KindAdditionalInfo,
		match: func(h headerSet) bool {
			return h.hasAny("VINCULACION", "CATEGORIA", "DEDICACION", "NIVEL ALCANZADO") &&
				!h.has("CEDULA")
		},
	},
	{
		name: "courses",
		kind: KindCourses,
		match: func(h headerSet) bool {
			codigo := false
			for _, cell := range h {
				if strings.Contains(cell, "CODIGO") && !strings.Contains(cell, "ESTUDIANTE") {
					codigo = true
					break
				}
			}
			return codigo &&
				(h.hasAll("NOMBRE", "ASIGNATURA") || h.has("TIPO") || h.has("GRUPO")) &&
				h.hasAny("HORAS", "SEMESTRE") &&
				!h.has("ESTUDIANTE") &&
				!h.has("TESIS")
		},
	},
	{
		name: "thesis",
		kind: KindThesis,
		match: func(h headerSet) bool {
			thesis := h.hasAll("CODIGO", "ESTUDIANTE") ||
				(h.has("ESTUDIANTE") && (h.has("PLAN") || h.hasAny("TITULO", "TESIS"))) ||
				h.hasAll("DIRECCION", "TESIS")
			if !thesis {
				return false
			}
			if researchWording(h) && !strongThesisIndicator(h) {
				return false
			}
			return true
		},
	},
	{
		name: "complementary",
		kind: KindComplementary,
		match: func(h headerSet) bool {
			return h.has("PARTICIPACION EN")
		},
	},
	{
		name: "commission",
		kind: KindCommission,
		match: func(h headerSet) bool {
			return h.has("TIPO DE COMISION")
		},
	},
	{
		name: "research",
		kind: KindResearch,
		match: func(h headerSet) bool {
			return h.has("PROYECTO DE INVESTIGACION") || researchWording(h)
		},
	},
	{
		name: "administrative",
		kind: KindAdministrative,
		match: func(h headerSet) bool {
			return h.has("CARGO") && h.has("DESCRIPCION DEL CARGO")
		},
	},
	{
		name: "extension",
		kind: KindExtension,
		match: func(h headerSet) bool {
			return h.has("TIPO") && h.has("NOMBRE") &&
				h.hasAny("HORAS", "SEMESTRE") &&
				!h.has("APROBADO")
		},
	},
	{
		name: "intellectual",
		kind: KindIntellectual,
		match: func(h headerSet) bool {
			return h.has("APROBADO") && h.has("TIPO") && h.has("NOMBRE")
		},
	},
}

// Table resolves an uppercased header vector to a table kind, or
// KindUnknown when nothing in the cascade matches.
func Table(upperHeader []string) Kind {
	h := headerSet(upperHeader)
	for _, rule := range tableRules {
		if rule.match(h) {
			return rule.kind
		}
	}
	return KindUnknown
}
