package asignacion

import (
	"strings"

	"github.com/univalle-dev/asignacion-go/internal/sliceutil"
)

var cedulaCleaner = strings.NewReplacer(" ", "", ".", "", "-", "")

// headerLikeTokens are roster column titles that show up as the first
// row of the source sheet and must not be treated as a cedula.
var headerLikeTokens = map[string]bool{
	"CEDULA":        true,
	"DOCUMENTO":     true,
	"ID":            true,
	"NO. DOCUMENTO": true,
}

// CleanCedula strips the separators people paste into roster cells.
func CleanCedula(raw string) string {
	return cedulaCleaner.Replace(strings.TrimSpace(raw))
}

// ValidCedula accepts 7 to 10 digits, nothing else.
func ValidCedula(cedula string) bool {
	if len(cedula) < 7 || len(cedula) > 10 {
		return false
	}
	for _, r := range cedula {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FilterCedulas turns a raw roster column into the harvest input:
// the header row is discarded when it looks like a title, every entry
// is cleaned and validated, and duplicates keep their first position.
func FilterCedulas(column []string) []string {
	if len(column) > 0 && headerLikeTokens[strings.ToUpper(strings.TrimSpace(column[0]))] {
		column = column[1:]
	}

	cedulas := make([]string, 0, len(column))
	for _, raw := range column {
		c := CleanCedula(raw)
		if ValidCedula(c) {
			cedulas = append(cedulas, c)
		}
	}
	return sliceutil.Deduplicate(cedulas, func(c string) string { return c })
}
