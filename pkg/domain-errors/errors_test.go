package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches wrapped code", func(t *testing.T) {
		base := New(CodeNotFound, "national ID not found")
		err := fmt.Errorf("lookup: %w", base)
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("walks nested domain errors", func(t *testing.T) {
		inner := New(CodeTimeout, "deadline")
		outer := Wrap(inner, CodeInternal, "store failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeTimeout))
		assert.Equal(t, CodeInternal, CodeOf(outer))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}

func TestErrorsIs(t *testing.T) {
	errIncomplete := New(CodeValidation, "incomplete registration")
	err := fmt.Errorf("submit: %w", New(CodeValidation, "incomplete registration"))
	assert.ErrorIs(t, err, errIncomplete)
	assert.NotErrorIs(t, err, New(CodeValidation, "other"))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "failed to upload document")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to upload document: connection refused", err.Error())
}
