// Package session stores registration sessions.
//
// Error contract for every implementation:
//   - sentinel.ErrNotFound when the session does not exist or has expired
//   - sentinel.ErrConflict when a create collides, or a document is staged
//     for a step twice, or a concurrent writer won an optimistic update
//   - sentinel.ErrInvalidState when the session cannot accept a document
//   - validate callback errors are returned unchanged
package session

import (
	"fmt"

	"intake/internal/registration/models"
	"intake/pkg/platform/sentinel"
)

func errNotFound() error {
	return fmt.Errorf("registration session not found: %w", sentinel.ErrNotFound)
}

// canAppend is the store-level guard for AppendDocument.
func canAppend(s *models.Session, step int) error {
	switch s.State {
	case models.StateAccountBound, models.StateStagingDocuments:
	default:
		return fmt.Errorf("session in state %s cannot stage documents: %w", s.State, sentinel.ErrInvalidState)
	}
	if s.HasStep(step) {
		return fmt.Errorf("step %d already staged: %w", step, sentinel.ErrConflict)
	}
	return nil
}
