package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"intake/internal/registration/models"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	audit "intake/pkg/platform/audit"
	"intake/pkg/platform/sentinel"
)

// blobCleanupConcurrency bounds parallel deletes when a session is replaced.
const blobCleanupConcurrency = 4

// IdentityResult reports the outcome of ValidateIdentity. Token and
// SessionID are set only when Status is IdentityValidated.
type IdentityResult struct {
	Status    models.IdentityStatus
	Token     string
	SessionID id.SessionID
	ExpiresAt time.Time
}

// ValidateIdentity checks nationalID against the roster and opens a session.
//
// current is the session the caller already holds (nil when none). The
// same identity resumes it; a different identity replaces it once the new
// session is open. Sessions of other callers are never touched.
func (s *Service) ValidateIdentity(ctx context.Context, current id.SessionID, rawNationalID string) (*IdentityResult, error) {
	nationalID, err := id.ParseNationalID(rawNationalID)
	if err != nil {
		return nil, err
	}

	entry, err := s.roster.Lookup(ctx, nationalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "national ID not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up national ID")
	}

	var previous *models.Session
	if !current.IsNil() {
		release := s.locks.Lock(sessionKey(current))
		defer release()

		previous, err = s.sessions.FindByID(ctx, current)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			previous = nil
		case err != nil:
			return nil, translateSessionErr(err, "load registration session")
		}
		if previous != nil && previous.NationalID == nationalID && previous.State != models.StateSubmitted {
			return s.resume(ctx, previous)
		}
	}

	// An incomplete account never reached submission, so its owner may start
	// over. BindAccount releases it when the new session binds.
	person, err := s.accounts.FindByNationalID(ctx, nationalID)
	switch {
	case err == nil && person.Status != models.StatusIncomplete:
		return &IdentityResult{Status: models.IdentityStatusFor(person.Status)}, nil
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		return nil, translateAccountErr(err, "look up account")
	}

	now := s.now(ctx)
	session, err := models.NewSession(id.NewSessionID(), nationalID, entry.FullName, now, s.sessionTTL)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, translateSessionErr(err, "create registration session")
	}
	token, err := s.tokens.Issue(session.ID, s.sessionTTL)
	if err != nil {
		_ = s.sessions.Delete(ctx, session.ID)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue registration token")
	}

	if previous != nil {
		s.replace(ctx, previous)
	}

	if s.metrics != nil {
		s.metrics.IncrementSessionsOpened()
	}
	s.logAudit(ctx, audit.EventSessionOpened,
		"session_id", session.ID.String(),
	)

	return &IdentityResult{
		Status:    models.IdentityValidated,
		Token:     token,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// resume reissues a token for the remaining lifetime of session.
func (s *Service) resume(ctx context.Context, session *models.Session) (*IdentityResult, error) {
	remaining := session.ExpiresAt.Sub(s.now(ctx))
	if remaining <= 0 {
		return nil, errSessionNotFound
	}
	token, err := s.tokens.Issue(session.ID, remaining)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue registration token")
	}
	return &IdentityResult{
		Status:    models.IdentityValidated,
		Token:     token,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// replace drops a superseded session and its staged blobs. Failures are
// logged; the caller already holds a new session.
func (s *Service) replace(ctx context.Context, previous *models.Session) {
	if err := s.sessions.Delete(ctx, previous.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete replaced session",
			"session_id", previous.ID.String(),
			"error", err,
		)
	}
	s.discardAll(ctx, previous.Locators())
	s.logAudit(ctx, audit.EventSessionReplaced,
		"session_id", previous.ID.String(),
		"documents", len(previous.Documents),
	)
}

// discardAll deletes locators concurrently, best-effort.
func (s *Service) discardAll(ctx context.Context, locators []string) {
	if len(locators) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(blobCleanupConcurrency)
	for _, locator := range locators {
		g.Go(func() error {
			s.discard(gctx, locator)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) discard(ctx context.Context, locator string) {
	if err := s.blobs.Delete(ctx, locator); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to delete blob",
			"locator", locator,
			"error", err,
		)
	}
}
