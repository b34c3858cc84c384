package normalize

import (
	"regexp"
	"strings"
)

var (
	tagRE = regexp.MustCompile(`<[^>]*>`)

	// NBSP and stray C1 controls count as whitespace here; both are
	// left over from the decode stages and never carry content.
	whitespaceRE = regexp.MustCompile("[\\s -]+")
)

// StripTags removes HTML tags, leaving a space so adjacent words stay
// separated until CollapseWhitespace runs.
func StripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	return tagRE.ReplaceAllString(s, " ")
}

// CollapseWhitespace folds every whitespace run into a single space and
// trims both ends.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}
