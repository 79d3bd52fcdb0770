// Package account persists applicant persons and their login principals.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"intake/internal/platform/postgres"
	"intake/internal/registration/models"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
	"intake/pkg/platform/tx"
)

// PostgresStore persists accounts in PostgreSQL.
type PostgresStore struct {
	db tx.Executor
}

// NewPostgres constructs a store over a connection pool. Calls join a
// transaction carried in the context.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a store bound to an open transaction.
func NewPostgresTx(t *sql.Tx) *PostgresStore {
	return &PostgresStore{db: t}
}

func (s *PostgresStore) exec(ctx context.Context) tx.Executor {
	return tx.Pick(ctx, s.db)
}

func (s *PostgresStore) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM principals WHERE email = $1)`, email)
}

func (s *PostgresStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM principals WHERE username = $1)`, username)
}

func (s *PostgresStore) exists(ctx context.Context, query, arg string) (bool, error) {
	var found bool
	if err := s.exec(ctx).QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("check principal: %w", err)
	}
	return found, nil
}

const personColumns = `id, national_id, first_name, last_name, phone, date_of_birth, gender, age, profile_picture_url, status, created_at`

func (s *PostgresStore) FindByNationalID(ctx context.Context, nationalID id.NationalID) (*models.Person, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE national_id = $1`, string(nationalID))
	return scanPerson(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Person, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = $1`, uuid.UUID(accountID))
	return scanPerson(row)
}

func scanPerson(row *sql.Row) (*models.Person, error) {
	var (
		p      models.Person
		pid    uuid.UUID
		dob    sql.NullTime
		natID  string
		status string
	)
	err := row.Scan(&pid, &natID, &p.FirstName, &p.LastName, &p.Phone, &dob,
		&p.Gender, &p.Age, &p.ProfilePictureURL, &status, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan person: %w", err)
	}
	p.ID = id.AccountID(pid)
	p.NationalID = id.NationalID(natID)
	p.Status = models.RegistrationStatus(status)
	if dob.Valid {
		p.DateOfBirth = dob.Time
	}
	return &p, nil
}

func (s *PostgresStore) CreatePerson(ctx context.Context, p *models.Person) error {
	var dob sql.NullTime
	if !p.DateOfBirth.IsZero() {
		dob = sql.NullTime{Time: p.DateOfBirth, Valid: true}
	}
	_, err := s.exec(ctx).ExecContext(ctx,
		`INSERT INTO persons (`+personColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(p.ID), string(p.NationalID), p.FirstName, p.LastName, p.Phone, dob,
		p.Gender, p.Age, p.ProfilePictureURL, string(p.Status), p.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("person already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePrincipal(ctx context.Context, p *models.Principal) error {
	_, err := s.exec(ctx).ExecContext(ctx,
		`INSERT INTO principals (person_id, username, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(p.PersonID), p.Username, p.Email, p.PasswordHash, p.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("principal %s: %w", postgres.ConstraintName(err), sentinel.ErrConflict)
		}
		return fmt.Errorf("insert principal: %w", err)
	}
	return nil
}

func (s *PostgresStore) AssignRole(ctx context.Context, accountID id.AccountID, role string) error {
	_, err := s.exec(ctx).ExecContext(ctx,
		`INSERT INTO principal_roles (person_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		uuid.UUID(accountID), role)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateRegistrationStatus(ctx context.Context, accountID id.AccountID, status models.RegistrationStatus) error {
	res, err := s.exec(ctx).ExecContext(ctx,
		`UPDATE persons SET status = $2 WHERE id = $1`, uuid.UUID(accountID), string(status))
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ReleaseIncomplete deletes an account still marked incomplete. Principals and
// roles go with it through ON DELETE CASCADE.
func (s *PostgresStore) ReleaseIncomplete(ctx context.Context, accountID id.AccountID) error {
	res, err := s.exec(ctx).ExecContext(ctx,
		`DELETE FROM persons WHERE id = $1 AND status = $2`,
		uuid.UUID(accountID), string(models.StatusIncomplete))
	if err != nil {
		return fmt.Errorf("release incomplete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release incomplete account: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Roles lists the roles assigned to an account.
func (s *PostgresStore) Roles(ctx context.Context, accountID id.AccountID) ([]string, error) {
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT role FROM principal_roles WHERE person_id = $1 ORDER BY role`, uuid.UUID(accountID))
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}
