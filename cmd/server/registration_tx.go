package main

import (
	"context"
	"database/sql"
	"time"

	"intake/internal/registration/service"
	"intake/internal/registration/store/account"
	"intake/internal/registration/store/application"
	dErrors "intake/pkg/domain-errors"
)

const defaultRegistrationTxTimeout = 5 * time.Second

// registrationPostgresTx runs account and application writes in one
// database transaction.
type registrationPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newRegistrationPostgresTx(db *sql.DB) *registrationPostgresTx {
	return &registrationPostgresTx{db: db}
}

func (t *registrationPostgresTx) RunInTx(ctx context.Context, fn func(stores service.TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultRegistrationTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(service.TxStores{
		Accounts:     account.NewPostgresTx(sqlTx),
		Applications: application.NewPostgresTx(sqlTx),
	}); err != nil {
		return err
	}

	return sqlTx.Commit()
}
