package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "repeated checklist words keep first position",
			input:    []string{"العامة", "التربية", "الطالب", "العامة", "الطالب"},
			expected: []string{"العامة", "التربية", "الطالب"},
		},
		{
			name:     "surrounding whitespace and blanks",
			input:    []string{"  شهادة ", "", "\t", "ميلاد\n"},
			expected: []string{"شهادة", "ميلاد"},
		},
		{
			name:     "inner whitespace collapses before comparing",
			input:    []string{"وزارة  الداخلية", "وزارة\tالداخلية", "وزارة الداخلية"},
			expected: []string{"وزارة الداخلية"},
		},
		{
			name:     "case is preserved",
			input:    []string{"ID", "id"},
			expected: []string{"ID", "id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
