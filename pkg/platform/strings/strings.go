// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// SplitAndTrim splits raw on sep, trims whitespace from each segment and
// drops segments left empty. Order is preserved and duplicates are kept.
//
// Example:
//
//	SplitAndTrim("A?; ;B?", ";")
//	// Returns: []string{"A?", "B?"}
func SplitAndTrim(raw, sep string) []string {
	parts := strings.Split(raw, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}
