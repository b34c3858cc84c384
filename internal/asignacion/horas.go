package asignacion

import (
	"regexp"
	"strconv"
	"strings"
)

var leadingNumberRE = regexp.MustCompile(`^\d+(?:\.\d+)?`)

// ParseHoras interprets an hours cell numerically. The raw string stays
// on the activity; this conversion happens only when flattening.
// Empty and dash-like tokens mean zero, and trailing junk after a
// leading number ("48 horas") is ignored.
func ParseHoras(s string) float64 {
	trimmed := strings.TrimSpace(s)
	switch trimmed {
	case "", "-", "–":
		return 0
	}

	normalized := strings.ReplaceAll(trimmed, ",", ".")
	if v, err := strconv.ParseFloat(normalized, 64); err == nil {
		return v
	}
	if m := leadingNumberRE.FindString(normalized); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return v
		}
	}
	return 0
}
