// Package domain holds typed identifiers shared across packages.
//
// Each ID wraps uuid.UUID so a session ID cannot be passed where an account
// ID is expected. Parse functions are the trust boundary for IDs arriving in
// tokens, paths and request bodies.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "intake/pkg/domain-errors"
)

type (
	SessionID     uuid.UUID
	AccountID     uuid.UUID
	ApplicationID uuid.UUID
)

func (id SessionID) String() string     { return uuid.UUID(id).String() }
func (id AccountID) String() string     { return uuid.UUID(id).String() }
func (id ApplicationID) String() string { return uuid.UUID(id).String() }

func (id SessionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id AccountID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func NewSessionID() SessionID         { return SessionID(uuid.New()) }
func NewAccountID() AccountID         { return AccountID(uuid.New()) }
func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }

// Text encoding keeps IDs readable in JSON. The nil UUID round-trips so an
// unset AccountID survives storage.
func (id SessionID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id AccountID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id ApplicationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *SessionID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AccountID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ApplicationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session ID")
	return SessionID(u), err
}

func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account ID")
	return AccountID(u), err
}

func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseUUID(s, "application ID")
	return ApplicationID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

// NationalID is a validated national identity number.
type NationalID string

var nationalIDPattern = regexp.MustCompile(`^[0-9]{6,20}$`)

// ParseNationalID trims s and accepts 6 to 20 ASCII digits.
func ParseNationalID(s string) (NationalID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "national_id is required")
	}
	if !nationalIDPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeValidation, "national_id must be 6 to 20 digits")
	}
	return NationalID(s), nil
}

func (n NationalID) String() string { return string(n) }
