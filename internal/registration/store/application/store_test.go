package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/registration/models"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	accountID := id.NewAccountID()
	app := models.NewApplication(id.NewApplicationID(), accountID, []models.StagedDocument{{Step: 5}, {Step: 8}}, time.Now())

	require.NoError(t, s.Create(ctx, app))
	assert.ErrorIs(t, s.Create(ctx, app), sentinel.ErrConflict)

	found, err := s.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Len(t, found.Documents, 2)
	assert.Len(t, s.ForAccount(accountID), 1)

	require.NoError(t, s.Delete(ctx, app.ID))
	_, err = s.FindByID(ctx, app.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
