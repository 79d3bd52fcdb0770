//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "intake/pkg/domain"
	audit "intake/pkg/platform/audit"
	auditpostgres "intake/pkg/platform/audit/store/postgres"
	"intake/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpostgres.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = auditpostgres.New(s.postgres.DB)
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *AuditStoreSuite) TestAppendAndList() {
	ctx := context.Background()
	accountID := id.NewAccountID()
	base := time.Now().UTC().Truncate(time.Microsecond)

	publisher := audit.NewPublisher(s.store)
	s.Require().NoError(publisher.Emit(ctx, audit.Event{
		AccountID: accountID,
		Subject:   "session-1",
		Action:    string(audit.EventAccountBound),
		RequestID: "req-1",
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: base.Add(time.Second),
		AccountID: accountID,
		Action:    string(audit.EventDocumentRejected),
		Decision:  "rejected",
		Reason:    "below_threshold",
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		Timestamp: base,
		Action:    string(audit.EventSessionOpened),
	}))

	events, err := s.store.ListByAccount(ctx, accountID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventAccountBound), events[0].Action)
	s.Equal(audit.CategoryCompliance, events[0].Category)
	s.Equal("req-1", events[0].RequestID)
	s.Equal("below_threshold", events[1].Reason)
}
