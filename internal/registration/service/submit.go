package service

import (
	"context"

	"intake/internal/registration/models"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	audit "intake/pkg/platform/audit"
)

// Submit turns the staged documents into a pending application, marks the
// account pending and closes the session.
func (s *Service) Submit(ctx context.Context, sessionID id.SessionID) (*models.Application, error) {
	release := s.locks.Lock(sessionKey(sessionID))
	defer release()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, translateSessionErr(err, "load registration session")
	}
	if err := session.CanSubmit(); err != nil {
		return nil, err
	}

	person, err := s.accounts.FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, translateAccountErr(err, "load account")
	}

	app := models.NewApplication(id.NewApplicationID(), session.AccountID, session.Documents, s.now(ctx))
	err = s.tx.RunInTx(ctx, func(stores TxStores) error {
		if err := stores.Applications.Create(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create application")
		}
		if err := stores.Accounts.UpdateRegistrationStatus(ctx, session.AccountID, models.StatusPending); err != nil {
			return translateAccountErr(err, "update registration status")
		}
		_, err := s.sessions.Execute(ctx, sessionID,
			(*models.Session).CanSubmit,
			func(session *models.Session) { session.State = models.StateSubmitted },
		)
		return translateSessionErr(err, "submit registration")
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.ApplicationSubmitted(ctx, models.NewSubmittedNotification(app, person)); err != nil {
		s.logger.WarnContext(ctx, "failed to publish application notification",
			"application_id", app.ID.String(),
			"error", err,
		)
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete submitted session",
			"session_id", sessionID.String(),
			"error", err,
		)
	}

	if s.metrics != nil {
		s.metrics.IncrementApplicationsSubmitted()
	}
	s.logAudit(ctx, audit.EventApplicationSubmitted,
		"session_id", sessionID.String(),
		"account_id", session.AccountID.String(),
		"application_id", app.ID.String(),
		"documents", len(app.Documents),
	)
	return app, nil
}

// Status returns a snapshot of the caller's session.
func (s *Service) Status(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	release := s.locks.RLock(sessionKey(sessionID))
	defer release()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, translateSessionErr(err, "load registration session")
	}
	return session, nil
}
