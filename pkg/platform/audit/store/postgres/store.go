package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "intake/pkg/domain"
	audit "intake/pkg/platform/audit"
	"intake/pkg/platform/tx"
)

// Store appends audit events to the audit_events table. Inside a
// registration transaction the insert joins it.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	var accountID *uuid.UUID
	if !event.AccountID.IsNil() {
		u := uuid.UUID(event.AccountID)
		accountID = &u
	}
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO audit_events (id, category, timestamp, account_id, subject, action, decision, reason, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New(),
		string(event.Category),
		event.Timestamp,
		accountID,
		event.Subject,
		event.Action,
		event.Decision,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByAccount(ctx context.Context, accountID id.AccountID) ([]audit.Event, error) {
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx, `
		SELECT category, timestamp, subject, action, decision, reason, request_id
		FROM audit_events
		WHERE account_id = $1
		ORDER BY timestamp`, uuid.UUID(accountID))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		e := audit.Event{AccountID: accountID}
		var category string
		if err := rows.Scan(&category, &e.Timestamp, &e.Subject, &e.Action, &e.Decision, &e.Reason, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
