package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrorCategory is the normalized failure taxonomy for analysis calls.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorAuthentication ErrorCategory = "authentication"
	ErrorProviderOutage ErrorCategory = "provider_outage"
	ErrorRateLimited    ErrorCategory = "rate_limited"
	ErrorCircuitOpen    ErrorCategory = "circuit_open"
	ErrorInternal       ErrorCategory = "internal"
)

// Error wraps a provider failure with its category.
type Error struct {
	Category   ErrorCategory
	Provider   string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("vision %s [%s]: %s: %v", e.Provider, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("vision %s [%s]: %s", e.Provider, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError creates a categorized provider error.
func NewError(category ErrorCategory, provider, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Provider:   provider,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorProviderOutage || category == ErrorRateLimited,
	}
}

// Category extracts the category from err, or ErrorInternal.
func Category(err error) ErrorCategory {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Category
	}
	return ErrorInternal
}

// countsAsOutage reports whether err says something about provider health.
// Bad input and authentication problems do not trip the breaker.
func countsAsOutage(err error) bool {
	switch Category(err) {
	case ErrorTimeout, ErrorProviderOutage, ErrorRateLimited:
		return true
	default:
		return false
	}
}

func classify(provider string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorTimeout, provider, "analysis timed out", err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			return NewError(ErrorRateLimited, provider, "quota exceeded", err)
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return NewError(ErrorAuthentication, provider, "credentials rejected", err)
		case gerr.Code >= 500:
			return NewError(ErrorProviderOutage, provider, "provider unavailable", err)
		case gerr.Code >= 400:
			return NewError(ErrorBadData, provider, "request rejected", err)
		}
	}
	return NewError(ErrorInternal, provider, "analysis failed", err)
}
