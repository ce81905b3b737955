// Package normalize cleans raw article text before chunking.
package normalize

import (
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>?`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Clean strips markup tags and collapses whitespace runs to a single space,
// trimming the result. Clean is deterministic and idempotent:
// Clean(Clean(s)) == Clean(s). Empty input yields empty output.
func Clean(text string) string {
	cleaned := tagPattern.ReplaceAllString(text, "")
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
