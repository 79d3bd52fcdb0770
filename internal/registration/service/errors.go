package service

import (
	"errors"
	"fmt"

	"intake/internal/validation"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/sentinel"
)

var (
	errSessionNotFound = dErrors.New(dErrors.CodeNotFound, "registration session not found")
	errStepStaged      = dErrors.New(dErrors.CodeConflict, "document already uploaded for this step")
	errAccountExists   = dErrors.New(dErrors.CodeConflict, "account already exists for this national ID")
)

// RejectionError carries the score of a document that failed validation.
// Callers reach it with errors.As through the CodeValidation wrapper.
type RejectionError struct {
	Step   int
	Score  float64
	Reason validation.Reason
}

func (e *RejectionError) Error() string {
	if e.Reason != validation.ReasonNone {
		return fmt.Sprintf("step %d scored %.2f (%s)", e.Step, e.Score, e.Reason)
	}
	return fmt.Sprintf("step %d scored %.2f", e.Step, e.Score)
}

// AsRejection extracts the RejectionError from err, if any.
func AsRejection(err error) (*RejectionError, bool) {
	var re *RejectionError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// translateSessionErr maps session store facts onto domain errors. Domain
// errors returned by validate callbacks pass through unchanged.
func translateSessionErr(err error, action string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrExpired):
		return errSessionNotFound
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "registration session cannot "+action)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "registration session changed concurrently")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
}

func translateAccountErr(err error, action string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "account already exists")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
}
