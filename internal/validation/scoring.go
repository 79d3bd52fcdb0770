package validation

import (
	"strings"
	"unicode/utf8"
)

// maxLengthDiff is the exclusive bound on rune-length difference for two
// strings to fuzzily match.
const maxLengthDiff = 3

// fuzzyMatch reports whether one string contains the other and their
// rune lengths differ by less than maxLengthDiff. OCR pads or truncates
// words by a character or two; the length bound keeps short fragments of
// long words from matching.
func fuzzyMatch(token, entry string) bool {
	if !strings.Contains(entry, token) && !strings.Contains(token, entry) {
		return false
	}
	diff := utf8.RuneCountInString(token) - utf8.RuneCountInString(entry)
	if diff < 0 {
		diff = -diff
	}
	return diff < maxLengthDiff
}

// KeywordScore counts checklist entries present in text. Tokens are
// whitespace separated and collapsed into a set first, so repeating a word
// never earns more than one entry; each entry counts at most once.
func KeywordScore(text string, checklist []string) int {
	fields := strings.Fields(text)
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[f] = struct{}{}
	}

	matched := 0
	for _, entry := range checklist {
		if entry == "" {
			continue
		}
		for tok := range tokens {
			if fuzzyMatch(tok, entry) {
				matched++
				break
			}
		}
	}
	return matched
}

// NameGate returns the percentage of name parts evidenced in text. Every word
// occurrence that matches any part adds one, without deduplication, so a
// document that repeats the holder's name scores higher. The result is not
// capped; callers compare it against a threshold.
func NameGate(text, expectedFullName string) float64 {
	parts := strings.Fields(expectedFullName)
	if len(parts) == 0 {
		return 0
	}

	matches := 0
	for _, line := range strings.Split(text, "\n") {
		for _, word := range strings.Fields(line) {
			for _, part := range parts {
				if fuzzyMatch(word, part) {
					matches++
					break
				}
			}
		}
	}
	return float64(matches) / float64(len(parts)) * 100
}

// reverseRunes reverses text by code point. PDF extraction of right-to-left
// scripts yields glyphs in visual order.
func reverseRunes(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
