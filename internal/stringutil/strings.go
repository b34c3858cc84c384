// Package stringutil provides common string manipulation utilities.
package stringutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// IsNumeric checks if a string contains only digits.
// Returns false for empty strings.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// accentFolder strips combining marks after canonical decomposition,
// turning "á" into "a" and "Ñ" into "N".
var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldAccents removes diacritical marks from s.
//
// Example:
//
//	FoldAccents("INVESTIGACIÓN") returns "INVESTIGACION"
//	FoldAccents("Cirugía Pediátrica") returns "Cirugia Pediatrica"
func FoldAccents(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	return folded
}

// NormalizeQuery lowercases s and folds accents, producing the canonical
// form used for search matching. Spanish sources write the same word with
// and without diacritics depending on the page, so both query and corpus
// go through this before comparison.
func NormalizeQuery(s string) string {
	return strings.ToLower(FoldAccents(s))
}

// Truncate shortens s to at most n runes, appending "..." when truncated.
// Returns s unchanged when it already fits.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
