package service

import (
	"context"
	"time"

	"intake/internal/registration/models"
	"intake/internal/validation"
	id "intake/pkg/domain"
	audit "intake/pkg/platform/audit"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error)
	AppendDocument(ctx context.Context, sessionID id.SessionID, doc models.StagedDocument) (*models.Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}

type Roster interface {
	Lookup(ctx context.Context, nationalID id.NationalID) (*models.RosterEntry, error)
}

type AccountStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	FindByNationalID(ctx context.Context, nationalID id.NationalID) (*models.Person, error)
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Person, error)
	CreatePerson(ctx context.Context, person *models.Person) error
	CreatePrincipal(ctx context.Context, principal *models.Principal) error
	AssignRole(ctx context.Context, accountID id.AccountID, role string) error
	UpdateRegistrationStatus(ctx context.Context, accountID id.AccountID, status models.RegistrationStatus) error
	// ReleaseIncomplete deletes an account that never reached submission,
	// with its principal and roles. sentinel.ErrNotFound means no such
	// incomplete account exists.
	ReleaseIncomplete(ctx context.Context, accountID id.AccountID) error
}

type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
}

// BlobStore holds uploaded files. Delete must treat a missing blob as success.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, name, contentType string) (string, error)
	Delete(ctx context.Context, locator string) error
}

type DocumentValidator interface {
	Validate(ctx context.Context, step validation.StepCode, doc validation.Document, expectedName string) validation.Outcome
}

// StepResolver maps a requested step code, aliases included, to its profile.
type StepResolver interface {
	Resolve(code validation.StepCode) (validation.Profile, bool)
}

type Notifier interface {
	ApplicationSubmitted(ctx context.Context, notification models.Notification) error
}

type TokenIssuer interface {
	Issue(sessionID id.SessionID, expiresIn time.Duration) (string, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
