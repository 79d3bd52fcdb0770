package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/vision"
)

func TestNewRegistry(t *testing.T) {
	t.Run("rejects a profile that awards no points", func(t *testing.T) {
		_, err := NewRegistry([]Profile{{Code: 1, Keywords: []string{"  ", ""}}}, nil)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate codes", func(t *testing.T) {
		p := Profile{Code: 1, Keywords: []string{"a"}}
		_, err := NewRegistry([]Profile{p, p}, nil)
		assert.Error(t, err)
	})

	t.Run("rejects alias to unknown code", func(t *testing.T) {
		_, err := NewRegistry([]Profile{{Code: 1, Keywords: []string{"a"}}}, map[StepCode]StepCode{2: 3})
		assert.Error(t, err)
	})

	t.Run("dedupes keyword checklists", func(t *testing.T) {
		r, err := NewRegistry([]Profile{{Code: 1, Keywords: []string{"a", " a ", "b"}}}, nil)
		require.NoError(t, err)
		p, ok := r.Resolve(1)
		require.True(t, ok)
		assert.Equal(t, []string{"a", "b"}, p.Keywords)
		assert.Equal(t, 2, p.Denominator())
	})
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, []StepCode{3, 4, 5, 6, 7, 8, 9}, r.Codes())

	t.Run("alias resolves to canonical profile", func(t *testing.T) {
		back, _ := r.Resolve(StepIDBack)
		alias, ok := r.Resolve(StepIDBackAlias)
		require.True(t, ok)
		assert.Equal(t, back.Code, alias.Code)
	})

	t.Run("every profile has a positive denominator", func(t *testing.T) {
		for _, code := range r.Codes() {
			p, _ := r.Resolve(code)
			assert.Positive(t, p.Denominator(), code)
		}
	})

	t.Run("denominators count each distinct entry once", func(t *testing.T) {
		want := map[StepCode]int{
			StepNomination:           59,
			StepIDFrontBound:         6 + 3 + 1,
			StepIDBack:               9 + 2,
			StepBirthCertificate:     38 + 2,
			StepSecondaryCertificate: 69 + 4 + 1,
		}
		for code, n := range want {
			p, _ := r.Resolve(code)
			assert.Equal(t, n, p.Denominator(), code)
		}
	})

	t.Run("checklists are free of duplicates", func(t *testing.T) {
		for _, code := range r.Codes() {
			p, _ := r.Resolve(code)
			seen := map[string]bool{}
			for _, k := range p.Keywords {
				assert.False(t, seen[k], "step %d repeats %q", code, k)
				seen[k] = true
			}
		}
	})

	t.Run("gated steps", func(t *testing.T) {
		for _, code := range r.Codes() {
			p, _ := r.Resolve(code)
			want := code == 3 || code == 4 || code == 6 || code == 7
			assert.Equal(t, want, p.NameGated, code)
		}
	})

	t.Run("features follow the profile", func(t *testing.T) {
		front, _ := r.Resolve(StepIDFrontBound)
		fs := front.Features()
		assert.True(t, fs.Has(vision.FeatureText))
		assert.True(t, fs.Has(vision.FeatureFace))
		assert.True(t, fs.Has(vision.FeatureLabel))

		back, _ := r.Resolve(StepIDBack)
		assert.False(t, back.Features().Has(vision.FeatureFace))

		nomination, _ := r.Resolve(StepNomination)
		assert.Empty(t, nomination.Features())
	})

	t.Run("unknown code", func(t *testing.T) {
		_, ok := r.Resolve(StepCode(11))
		assert.False(t, ok)
	})
}
