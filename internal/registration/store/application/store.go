// Package application persists submitted registration applications.
package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"intake/internal/platform/postgres"
	"intake/internal/registration/models"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
	"intake/pkg/platform/tx"
)

// PostgresStore writes applications and their documents.
type PostgresStore struct {
	db tx.Executor
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func NewPostgresTx(t *sql.Tx) *PostgresStore {
	return &PostgresStore{db: t}
}

// Create inserts the application and its documents. Callers run it inside a
// transaction so a failed document insert leaves no application behind.
func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	exec := tx.Pick(ctx, s.db)
	_, err := exec.ExecContext(ctx,
		`INSERT INTO applications (id, person_id, title, status, submitted_at, review_date, decision_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(app.ID), uuid.UUID(app.AccountID), app.Title, string(app.Status),
		app.SubmittedAt, app.ReviewDate, app.DecisionDate)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("application exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert application: %w", err)
	}
	for _, d := range app.Documents {
		_, err := exec.ExecContext(ctx,
			`INSERT INTO application_documents (application_id, step, locator, file_name, content_type, score, uploaded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.UUID(app.ID), d.Step, d.Locator, d.FileName, d.ContentType, d.Score, d.UploadedAt)
		if err != nil {
			return fmt.Errorf("insert application document: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	exec := tx.Pick(ctx, s.db)
	var (
		app       models.Application
		appID     uuid.UUID
		accountID uuid.UUID
		status    string
	)
	err := exec.QueryRowContext(ctx,
		`SELECT id, person_id, title, status, submitted_at, review_date, decision_date
		 FROM applications WHERE id = $1`, uuid.UUID(applicationID),
	).Scan(&appID, &accountID, &app.Title, &status, &app.SubmittedAt, &app.ReviewDate, &app.DecisionDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find application: %w", err)
	}
	app.ID = id.ApplicationID(appID)
	app.AccountID = id.AccountID(accountID)
	app.Status = models.ApplicationStatus(status)

	rows, err := exec.QueryContext(ctx,
		`SELECT step, locator, file_name, content_type, score, uploaded_at
		 FROM application_documents WHERE application_id = $1 ORDER BY uploaded_at, step`, appID)
	if err != nil {
		return nil, fmt.Errorf("list application documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d models.StagedDocument
		if err := rows.Scan(&d.Step, &d.Locator, &d.FileName, &d.ContentType, &d.Score, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan application document: %w", err)
		}
		app.Documents = append(app.Documents, d)
	}
	return &app, rows.Err()
}

// InMemoryStore keeps applications in a map.
type InMemoryStore struct {
	mu   sync.RWMutex
	apps map[id.ApplicationID]*models.Application
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{apps: make(map[id.ApplicationID]*models.Application)}
}

func (s *InMemoryStore) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; ok {
		return fmt.Errorf("application exists: %w", sentinel.ErrConflict)
	}
	cp := *app
	cp.Documents = append([]models.StagedDocument(nil), app.Documents...)
	s.apps[app.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[applicationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *app
	cp.Documents = append([]models.StagedDocument(nil), app.Documents...)
	return &cp, nil
}

// ForAccount lists an account's applications.
func (s *InMemoryStore) ForAccount(accountID id.AccountID) []*models.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Application
	for _, app := range s.apps {
		if app.AccountID == accountID {
			cp := *app
			out = append(out, &cp)
		}
	}
	return out
}

// Delete removes an application. The in-memory transaction uses it to undo a
// partially applied submit.
func (s *InMemoryStore) Delete(_ context.Context, applicationID id.ApplicationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.apps, applicationID)
	return nil
}
