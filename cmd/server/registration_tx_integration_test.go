//go:build integration

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"intake/internal/registration/models"
	"intake/internal/registration/service"
	"intake/internal/registration/store/account"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/sentinel"
	"intake/pkg/testutil/containers"
)

type RegistrationTxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	tx       *registrationPostgresTx
	accounts *account.PostgresStore
}

func TestRegistrationTxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RegistrationTxSuite))
}

func (s *RegistrationTxSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.tx = newRegistrationPostgresTx(s.postgres.DB)
	s.accounts = account.NewPostgres(s.postgres.DB)
}

func (s *RegistrationTxSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"application_documents", "applications", "principal_roles", "principals", "persons")
	s.Require().NoError(err)
}

func (s *RegistrationTxSuite) person() *models.Person {
	return &models.Person{
		ID:         id.NewAccountID(),
		NationalID: "29801011234567",
		FirstName:  "Sara",
		LastName:   "Mahmoud",
		Status:     models.StatusIncomplete,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *RegistrationTxSuite) TestCommit() {
	ctx := context.Background()
	p := s.person()

	err := s.tx.RunInTx(ctx, func(stores service.TxStores) error {
		if err := stores.Accounts.CreatePerson(ctx, p); err != nil {
			return err
		}
		return stores.Accounts.CreatePrincipal(ctx, &models.Principal{
			PersonID: p.ID, Username: "sara", Email: "sara@example.com", PasswordHash: "x", CreatedAt: p.CreatedAt,
		})
	})
	s.Require().NoError(err)

	found, err := s.accounts.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("Sara", found.FirstName)
}

func (s *RegistrationTxSuite) TestRollback() {
	ctx := context.Background()
	p := s.person()
	boom := errors.New("principal insert failed")

	err := s.tx.RunInTx(ctx, func(stores service.TxStores) error {
		if err := stores.Accounts.CreatePerson(ctx, p); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.accounts.FindByID(ctx, p.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RegistrationTxSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.tx.RunInTx(ctx, func(service.TxStores) error {
		called = true
		return nil
	})
	s.False(called)
	s.Equal(dErrors.CodeTimeout, dErrors.CodeOf(err))
}
