package storage

import "strings"

// sanitizeSearchTerm escapes the SQLite LIKE wildcards so a professor
// name typed into the search box is matched literally. The queries
// using it must declare ESCAPE '\'.
//
//	%  matches any sequence
//	_  matches any single character
//	\  the escape character itself
func sanitizeSearchTerm(term string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\", // escape the escape character first
		"%", "\\%",
		"_", "\\_",
	)
	return replacer.Replace(term)
}
