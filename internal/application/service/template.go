package service

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`(?i)\{\{((?:user|char)\d+)\}\}`)

// Substitute expands {{userN}} / {{charN}} placeholders. Matching is case-insensitive and a
// placeholder whose key is missing from ctx is left as written.
func Substitute(template string, ctx ContextMap) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := strings.ToLower(placeholderPattern.FindStringSubmatch(match)[1])
		if value, ok := ctx[key]; ok {
			return value
		}
		return match
	})
}
