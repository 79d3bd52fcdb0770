package models

import (
	"time"

	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

// State is a registration session's position in the step sequence.
type State string

const (
	StateIdentityValidated State = "identity_validated"
	StateAccountBound      State = "account_bound"
	StateStagingDocuments  State = "staging_documents"
	StateSubmitted         State = "submitted"
)

// MinStagedDocuments is the number of staged documents Submit requires.
const MinStagedDocuments = 2

// StagedDocument is a validated upload waiting for submission.
type StagedDocument struct {
	Step        int       `json:"step"`
	Locator     string    `json:"locator"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Score       float64   `json:"score"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Session is one caller's in-progress registration.
//
// Invariants:
//   - AccountID is nil until State reaches AccountBound
//   - Documents holds at most one entry per step, in upload order
//   - Documents is empty before AccountBound
type Session struct {
	ID         id.SessionID     `json:"id"`
	NationalID id.NationalID    `json:"national_id"`
	FullName   string           `json:"full_name"`
	AccountID  id.AccountID     `json:"account_id"`
	Documents  []StagedDocument `json:"documents"`
	State      State            `json:"state"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// NewSession opens a session for a validated identity.
func NewSession(sessionID id.SessionID, nationalID id.NationalID, fullName string, now time.Time, ttl time.Duration) (*Session, error) {
	if sessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session ID required")
	}
	if nationalID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "national ID required")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session TTL must be positive")
	}
	return &Session{
		ID:         sessionID,
		NationalID: nationalID,
		FullName:   fullName,
		State:      StateIdentityValidated,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}, nil
}

func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// CanBindAccount checks the session is waiting for an account.
func (s *Session) CanBindAccount() error {
	if s.State != StateIdentityValidated {
		return dErrors.New(dErrors.CodeInvalidState, "account already bound to this registration")
	}
	return nil
}

// ApplyAccountBinding records the bound account. Call CanBindAccount first.
func (s *Session) ApplyAccountBinding(accountID id.AccountID) {
	s.AccountID = accountID
	s.State = StateAccountBound
}

// CanStage checks a document for step may be staged.
func (s *Session) CanStage(step int) error {
	switch s.State {
	case StateAccountBound, StateStagingDocuments:
	case StateIdentityValidated:
		return dErrors.New(dErrors.CodeInvalidState, "account must be created before uploading documents")
	default:
		return dErrors.New(dErrors.CodeInvalidState, "registration already submitted")
	}
	if s.HasStep(step) {
		return dErrors.New(dErrors.CodeConflict, "document already uploaded for this step")
	}
	return nil
}

// ApplyStaged appends doc. Call CanStage first.
func (s *Session) ApplyStaged(doc StagedDocument) {
	s.Documents = append(s.Documents, doc)
	s.State = StateStagingDocuments
}

func (s *Session) HasStep(step int) bool {
	for _, d := range s.Documents {
		if d.Step == step {
			return true
		}
	}
	return false
}

// CanSubmit checks the session holds enough documents to submit.
func (s *Session) CanSubmit() error {
	switch s.State {
	case StateIdentityValidated:
		return dErrors.New(dErrors.CodeInvalidState, "account must be created before submitting")
	case StateSubmitted:
		return dErrors.New(dErrors.CodeInvalidState, "registration already submitted")
	}
	if len(s.Documents) < MinStagedDocuments {
		return dErrors.New(dErrors.CodeValidation, "incomplete registration")
	}
	return nil
}

// Locators lists the blob locators of staged documents.
func (s *Session) Locators() []string {
	out := make([]string, 0, len(s.Documents))
	for _, d := range s.Documents {
		out = append(out, d.Locator)
	}
	return out
}

// Remaining is how many more documents Submit needs.
func (s *Session) Remaining() int {
	if n := MinStagedDocuments - len(s.Documents); n > 0 {
		return n
	}
	return 0
}

// Clone returns a deep copy so callers can't mutate stored state.
func (s *Session) Clone() *Session {
	c := *s
	c.Documents = append([]StagedDocument(nil), s.Documents...)
	return &c
}
