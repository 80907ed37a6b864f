// Package strings provides string-slice normalization helpers for
// user-supplied list fields.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
//	// Returns: []string{"foo", "bar"}
func DedupeAndTrim(values []string) []string {
	return normalize(values, func(s string) string { return s })
}

// DedupeAndTrimUpper is like DedupeAndTrim but also uppercases each element.
// Used for country codes, where "nl" and "NL" name the same country.
func DedupeAndTrimUpper(values []string) []string {
	return normalize(values, strings.ToUpper)
}

func normalize(values []string, fold func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		cleaned := fold(strings.TrimSpace(v))
		if cleaned == "" {
			continue
		}
		if _, ok := seen[cleaned]; !ok {
			seen[cleaned] = struct{}{}
			result = append(result, cleaned)
		}
	}

	return result
}
