package service

import (
	"context"
	"sync"
	"time"

	"intake/internal/registration/models"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

// TxStores are the stores available inside a registration transaction.
type TxStores struct {
	Accounts     AccountStore
	Applications ApplicationStore
}

// RegistrationTx provides a transactional boundary for account and
// application writes. Implementations may wrap a database transaction or,
// in-memory, a coarse lock with compensating deletes.
type RegistrationTx interface {
	RunInTx(ctx context.Context, fn func(stores TxStores) error) error
}

const defaultTxTimeout = 5 * time.Second

// The deleter and restorer interfaces are implemented by the in-memory stores
// so a failed transaction can be undone.
type personDeleter interface {
	DeletePerson(ctx context.Context, accountID id.AccountID) error
}

type accountRestorer interface {
	Restorer(ctx context.Context, accountID id.AccountID) func(context.Context)
}

type applicationDeleter interface {
	Delete(ctx context.Context, applicationID id.ApplicationID) error
}

type inMemoryTx struct {
	mu     sync.Mutex
	stores TxStores
}

func newInMemoryTx(accounts AccountStore, applications ApplicationStore) *inMemoryTx {
	return &inMemoryTx{stores: TxStores{Accounts: accounts, Applications: applications}}
}

func (t *inMemoryTx) RunInTx(ctx context.Context, fn func(stores TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	j := &journal{}
	stores := TxStores{
		Accounts:     &journaledAccounts{AccountStore: t.stores.Accounts, j: j},
		Applications: &journaledApplications{ApplicationStore: t.stores.Applications, j: j},
	}
	if err := fn(stores); err != nil {
		j.undo(context.WithoutCancel(ctx))
		return err
	}
	return nil
}

// journal records writes so they can be reverted in reverse order.
type journal struct {
	undos []func(ctx context.Context)
}

func (j *journal) undo(ctx context.Context) {
	for i := len(j.undos) - 1; i >= 0; i-- {
		j.undos[i](ctx)
	}
}

type journaledAccounts struct {
	AccountStore
	j *journal
}

func (a *journaledAccounts) CreatePerson(ctx context.Context, p *models.Person) error {
	if err := a.AccountStore.CreatePerson(ctx, p); err != nil {
		return err
	}
	accountID := p.ID
	if d, ok := a.AccountStore.(personDeleter); ok {
		a.j.undos = append(a.j.undos, func(ctx context.Context) { _ = d.DeletePerson(ctx, accountID) })
	}
	return nil
}

func (a *journaledAccounts) ReleaseIncomplete(ctx context.Context, accountID id.AccountID) error {
	var restore func(context.Context)
	if r, ok := a.AccountStore.(accountRestorer); ok {
		restore = r.Restorer(ctx, accountID)
	}
	if err := a.AccountStore.ReleaseIncomplete(ctx, accountID); err != nil {
		return err
	}
	if restore != nil {
		a.j.undos = append(a.j.undos, restore)
	}
	return nil
}

func (a *journaledAccounts) UpdateRegistrationStatus(ctx context.Context, accountID id.AccountID, status models.RegistrationStatus) error {
	prev, findErr := a.AccountStore.FindByID(ctx, accountID)
	if err := a.AccountStore.UpdateRegistrationStatus(ctx, accountID, status); err != nil {
		return err
	}
	if findErr == nil {
		store, previous := a.AccountStore, prev.Status
		a.j.undos = append(a.j.undos, func(ctx context.Context) {
			_ = store.UpdateRegistrationStatus(ctx, accountID, previous)
		})
	}
	return nil
}

type journaledApplications struct {
	ApplicationStore
	j *journal
}

func (a *journaledApplications) Create(ctx context.Context, app *models.Application) error {
	if err := a.ApplicationStore.Create(ctx, app); err != nil {
		return err
	}
	applicationID := app.ID
	if d, ok := a.ApplicationStore.(applicationDeleter); ok {
		a.j.undos = append(a.j.undos, func(ctx context.Context) { _ = d.Delete(ctx, applicationID) })
	}
	return nil
}
