package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "intake/pkg/domain"
	audit "intake/pkg/platform/audit"
	"intake/pkg/platform/audit/store/memory"
)

func TestPublisherEmit(t *testing.T) {
	ctx := context.Background()
	accountID := id.NewAccountID()

	t.Run("stamps time and derives category from action", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := audit.NewPublisher(store)

		require.NoError(t, pub.Emit(ctx, audit.Event{AccountID: accountID, Action: string(audit.EventApplicationSubmitted)}))

		events, err := pub.List(ctx, accountID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
		assert.WithinDuration(t, time.Now(), events[0].Timestamp, time.Minute)
	})

	t.Run("keeps an explicit timestamp", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := audit.NewPublisher(store)
		at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

		require.NoError(t, pub.Emit(ctx, audit.Event{Action: string(audit.EventSessionOpened), Timestamp: at}))

		all, err := store.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, at, all[0].Timestamp)
		assert.Equal(t, audit.CategoryOperations, all[0].Category)
	})

	t.Run("filters by account", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := audit.NewPublisher(store)
		require.NoError(t, pub.Emit(ctx, audit.Event{AccountID: accountID, Action: string(audit.EventAccountBound)}))
		require.NoError(t, pub.Emit(ctx, audit.Event{AccountID: id.NewAccountID(), Action: string(audit.EventAccountBound)}))

		events, err := pub.List(ctx, accountID)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}

func TestUnknownEventIsOperations(t *testing.T) {
	assert.Equal(t, audit.CategoryOperations, audit.AuditEvent("something_else").Category())
}
