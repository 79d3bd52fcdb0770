// Package audit records registration events for later review.
package audit

import (
	"time"

	id "intake/pkg/domain"
)

// EventCategory classifies audit events so sinks can apply different
// retention.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance, such as
	// account creation and application submission.
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations covers routine activity that may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	AccountID id.AccountID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	EventSessionOpened        AuditEvent = "registration_session_opened"
	EventSessionReplaced      AuditEvent = "registration_session_replaced"
	EventAccountBound         AuditEvent = "account_bound"
	EventAccountReleased      AuditEvent = "incomplete_account_released"
	EventDocumentStaged       AuditEvent = "document_staged"
	EventDocumentRejected     AuditEvent = "document_rejected"
	EventApplicationSubmitted AuditEvent = "application_submitted"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAccountBound:         CategoryCompliance,
	EventAccountReleased:      CategoryCompliance,
	EventApplicationSubmitted: CategoryCompliance,
	EventDocumentRejected:     CategoryCompliance,

	EventSessionOpened:   CategoryOperations,
	EventSessionReplaced: CategoryOperations,
	EventDocumentStaged:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
