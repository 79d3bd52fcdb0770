package service

import (
	"context"
	"errors"

	"intake/internal/registration/models"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	audit "intake/pkg/platform/audit"
	"intake/pkg/platform/sentinel"
)

// BindAccount creates the applicant account for a validated session and
// binds it. Person, principal, role and binding commit together.
func (s *Service) BindAccount(ctx context.Context, sessionID id.SessionID, req *models.AccountRequest) (*models.Person, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	release := s.locks.Lock(sessionKey(sessionID))
	defer release()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, translateSessionErr(err, "load registration session")
	}
	if err := session.CanBindAccount(); err != nil {
		return nil, err
	}
	stale, err := s.staleAccount(ctx, session.NationalID)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now(ctx)
	dob := req.ParsedDateOfBirth()
	person := &models.Person{
		ID:                id.NewAccountID(),
		NationalID:        session.NationalID,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Phone:             req.Phone,
		DateOfBirth:       dob,
		Gender:            req.Gender,
		Age:               models.AgeOn(dob, now),
		ProfilePictureURL: req.ProfilePictureURL,
		Status:            models.StatusIncomplete,
		CreatedAt:         now,
	}
	principal := &models.Principal{
		PersonID:     person.ID,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now,
	}

	err = s.tx.RunInTx(ctx, func(stores TxStores) error {
		if stale != nil {
			if err := stores.Accounts.ReleaseIncomplete(ctx, stale.ID); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return errAccountExists
				}
				return translateAccountErr(err, "release incomplete account")
			}
		}
		if err := ensureAvailable(ctx, stores.Accounts, req); err != nil {
			return err
		}
		if err := stores.Accounts.CreatePerson(ctx, person); err != nil {
			return translateAccountErr(err, "create person")
		}
		if err := stores.Accounts.CreatePrincipal(ctx, principal); err != nil {
			return translateAccountErr(err, "create principal")
		}
		if err := stores.Accounts.AssignRole(ctx, person.ID, models.RoleApplicant); err != nil {
			return translateAccountErr(err, "assign role")
		}
		_, err := s.sessions.Execute(ctx, sessionID,
			(*models.Session).CanBindAccount,
			func(session *models.Session) { session.ApplyAccountBinding(person.ID) },
		)
		return translateSessionErr(err, "bind account")
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementAccountsBound()
	}
	if stale != nil {
		s.logAudit(ctx, audit.EventAccountReleased,
			"session_id", sessionID.String(),
			"account_id", stale.ID.String(),
		)
	}
	s.logAudit(ctx, audit.EventAccountBound,
		"session_id", sessionID.String(),
		"account_id", person.ID.String(),
	)
	return person, nil
}

// staleAccount returns the incomplete account left behind by an abandoned
// session for nationalID, or nil when there is none. Any other account
// blocks the bind.
func (s *Service) staleAccount(ctx context.Context, nationalID id.NationalID) (*models.Person, error) {
	person, err := s.accounts.FindByNationalID(ctx, nationalID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, translateAccountErr(err, "look up account")
	case person.Status != models.StatusIncomplete:
		return nil, errAccountExists
	}
	return person, nil
}

// ensureAvailable rejects an email or username that is already registered.
// The unique constraints still decide races.
func ensureAvailable(ctx context.Context, accounts AccountStore, req *models.AccountRequest) error {
	taken, err := accounts.EmailExists(ctx, req.Email)
	if err != nil {
		return translateAccountErr(err, "check email")
	}
	if taken {
		return dErrors.New(dErrors.CodeConflict, "email already registered")
	}
	taken, err = accounts.UsernameExists(ctx, req.Username)
	if err != nil {
		return translateAccountErr(err, "check username")
	}
	if taken {
		return dErrors.New(dErrors.CodeConflict, "username already taken")
	}
	return nil
}
