package models

import (
	"fmt"
	"time"

	id "intake/pkg/domain"
)

// ApplicationTitle is the title of every submitted registration.
const ApplicationTitle = "Registration Requests"

const (
	reviewDelay   = 7 * 24 * time.Hour
	decisionDelay = 1 // months
)

// ApplicationStatus is the review state of an application.
type ApplicationStatus string

const ApplicationPending ApplicationStatus = "pending"

// Application is a submitted registration awaiting review.
type Application struct {
	ID           id.ApplicationID
	AccountID    id.AccountID
	Title        string
	Status       ApplicationStatus
	SubmittedAt  time.Time
	ReviewDate   time.Time
	DecisionDate time.Time
	Documents    []StagedDocument
}

// NewApplication builds a pending application from a session's staged
// documents.
func NewApplication(applicationID id.ApplicationID, accountID id.AccountID, docs []StagedDocument, now time.Time) *Application {
	return &Application{
		ID:           applicationID,
		AccountID:    accountID,
		Title:        ApplicationTitle,
		Status:       ApplicationPending,
		SubmittedAt:  now,
		ReviewDate:   now.Add(reviewDelay),
		DecisionDate: now.AddDate(0, decisionDelay, 0),
		Documents:    append([]StagedDocument(nil), docs...),
	}
}

// Notification announces a submitted application.
type Notification struct {
	ApplicationID id.ApplicationID `json:"application_id"`
	AccountID     id.AccountID     `json:"account_id"`
	Message       string           `json:"message"`
	SubmittedAt   time.Time        `json:"submitted_at"`
}

// NewSubmittedNotification formats the application_submitted notification.
func NewSubmittedNotification(app *Application, person *Person) Notification {
	return Notification{
		ApplicationID: app.ID,
		AccountID:     app.AccountID,
		Message:       fmt.Sprintf("Applicant: %s %s - ID: %s registered", person.FirstName, person.LastName, app.AccountID),
		SubmittedAt:   app.SubmittedAt,
	}
}

// IdentityStatus is the outcome of validating a national ID.
type IdentityStatus string

const (
	// IdentityValidated means a session is open for the caller.
	IdentityValidated  IdentityStatus = "validated"
	IdentityIncomplete IdentityStatus = "incomplete"
	IdentityPending    IdentityStatus = "pending"
	IdentityAccepted   IdentityStatus = "accepted"
)

// IdentityStatusFor maps an existing account's status.
func IdentityStatusFor(status RegistrationStatus) IdentityStatus {
	switch status {
	case StatusPending:
		return IdentityPending
	case StatusAccepted:
		return IdentityAccepted
	default:
		return IdentityIncomplete
	}
}
