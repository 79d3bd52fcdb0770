// Package token issues and validates registration tokens.
//
// A registration token binds an HTTP caller to exactly one registration
// session; it carries no account identity.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

const (
	defaultIssuer   = "intake"
	defaultAudience = "registration"
)

// Claims is the payload of a registration token.
type Claims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Service signs registration tokens with HS256.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

type Option func(*Service)

func WithIssuer(issuer string) Option {
	return func(s *Service) { s.issuer = issuer }
}

// WithClock overrides the time source used for issued-at and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(signingKey string, opts ...Option) *Service {
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     defaultIssuer,
		audience:   defaultAudience,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a token for sessionID valid for expiresIn.
func (s *Service) Issue(sessionID id.SessionID, expiresIn time.Duration) (string, error) {
	now := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	signed, err := t.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign registration token")
	}
	return signed, nil
}

// Parse validates tokenString and returns its claims.
func (s *Service) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "registration token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid registration token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid registration token")
	}
	return claims, nil
}

// ValidateToken returns the session a token is bound to.
func (s *Service) ValidateToken(tokenString string) (id.SessionID, error) {
	claims, err := s.Parse(tokenString)
	if err != nil {
		return id.SessionID{}, err
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid registration token claims")
	}
	return sessionID, nil
}
