// Package service drives a registration session through identity
// validation, account binding, document staging and submission.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"intake/internal/registration/metrics"
	"intake/internal/registration/notify"
	"intake/internal/registration/secrets"
	"intake/pkg/attrs"
	id "intake/pkg/domain"
	audit "intake/pkg/platform/audit"
	"intake/pkg/platform/keylock"
	"intake/pkg/requestcontext"
)

const (
	DefaultSessionTTL = 30 * time.Minute
	defaultHashCost   = 12
)

// Stores groups the persistence collaborators. All are required.
type Stores struct {
	Sessions     SessionStore
	Roster       Roster
	Accounts     AccountStore
	Applications ApplicationStore
	Blobs        BlobStore
}

type Service struct {
	sessions     SessionStore
	roster       Roster
	accounts     AccountStore
	applications ApplicationStore
	blobs        BlobStore
	validator    DocumentValidator
	steps        StepResolver
	tokens       TokenIssuer

	tx             RegistrationTx
	hasher         PasswordHasher
	notifier       Notifier
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	locks          *keylock.Map
	sessionTTL     time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithTx replaces the in-memory transaction with a database-backed one.
func WithTx(tx RegistrationTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithHasher(h PasswordHasher) Option {
	return func(s *Service) {
		s.hasher = h
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func New(stores Stores, validator DocumentValidator, steps StepResolver, tokens TokenIssuer, opts ...Option) (*Service, error) {
	switch {
	case stores.Sessions == nil:
		return nil, errors.New("session store is required")
	case stores.Roster == nil:
		return nil, errors.New("identity roster is required")
	case stores.Accounts == nil:
		return nil, errors.New("account store is required")
	case stores.Applications == nil:
		return nil, errors.New("application store is required")
	case stores.Blobs == nil:
		return nil, errors.New("blob store is required")
	case validator == nil:
		return nil, errors.New("document validator is required")
	case steps == nil:
		return nil, errors.New("step resolver is required")
	case tokens == nil:
		return nil, errors.New("token issuer is required")
	}

	svc := &Service{
		sessions:     stores.Sessions,
		roster:       stores.Roster,
		accounts:     stores.Accounts,
		applications: stores.Applications,
		blobs:        stores.Blobs,
		validator:    validator,
		steps:        steps,
		tokens:       tokens,
		locks:        keylock.New(),
		sessionTTL:   DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tx == nil {
		svc.tx = newInMemoryTx(stores.Accounts, stores.Applications)
	}
	if svc.hasher == nil {
		svc.hasher = secrets.NewHasher(defaultHashCost)
	}
	if svc.notifier == nil {
		svc.notifier = notify.NewLog(svc.logger)
	}
	return svc, nil
}

func sessionKey(sessionID id.SessionID) string {
	return "session:" + sessionID.String()
}

func stepKey(sessionID id.SessionID, step int) string {
	return fmt.Sprintf("session:%s:step:%d", sessionID, step)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	s.logger.InfoContext(ctx, string(event), args...)
	if s.auditPublisher == nil {
		return
	}
	e := audit.Event{
		Subject:   attrs.ExtractString(attributes, "session_id"),
		Action:    string(event),
		Decision:  attrs.ExtractString(attributes, "decision"),
		Reason:    attrs.ExtractString(attributes, "reason"),
		RequestID: attrs.ExtractString(attributes, "request_id"),
	}
	if accountID, err := id.ParseAccountID(attrs.ExtractString(attributes, "account_id")); err == nil {
		e.AccountID = accountID
	}
	if err := s.auditPublisher.Emit(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

func (s *Service) now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx)
}
