// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeAndTrim normalises a word list: surrounding whitespace is trimmed,
// inner runs of whitespace collapse to one space, and blank or repeated
// entries are dropped. The first occurrence keeps its position.
//
//	DedupeAndTrim([]string{" العامة ", "التربية", "العامة", "  "})
//	// []string{"العامة", "التربية"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		word := strings.Join(strings.Fields(v), " ")
		if word == "" {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		result = append(result, word)
	}
	return result
}
