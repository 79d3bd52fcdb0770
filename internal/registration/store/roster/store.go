// Package roster looks up national IDs in the identity roster.
package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"intake/internal/registration/models"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

// PostgresStore reads the identity_roster table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Lookup(ctx context.Context, nationalID id.NationalID) (*models.RosterEntry, error) {
	var entry models.RosterEntry
	var natID string
	err := s.db.QueryRowContext(ctx,
		`SELECT national_id, full_name FROM identity_roster WHERE national_id = $1`, string(nationalID),
	).Scan(&natID, &entry.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup roster: %w", err)
	}
	entry.NationalID = id.NationalID(natID)
	return &entry, nil
}

// Upsert adds or renames a roster entry.
func (s *PostgresStore) Upsert(ctx context.Context, entry models.RosterEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identity_roster (national_id, full_name) VALUES ($1, $2)
		 ON CONFLICT (national_id) DO UPDATE SET full_name = EXCLUDED.full_name`,
		string(entry.NationalID), entry.FullName)
	if err != nil {
		return fmt.Errorf("upsert roster: %w", err)
	}
	return nil
}

// InMemoryStore is a fixed roster for tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.NationalID]models.RosterEntry
}

func NewInMemory(entries ...models.RosterEntry) *InMemoryStore {
	s := &InMemoryStore{entries: make(map[id.NationalID]models.RosterEntry, len(entries))}
	for _, e := range entries {
		s.entries[e.NationalID] = e
	}
	return s
}

func (s *InMemoryStore) Lookup(_ context.Context, nationalID id.NationalID) (*models.RosterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[nationalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, entry models.RosterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.NationalID] = entry
	return nil
}
