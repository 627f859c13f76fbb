package intake

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockyard-backend/internal/warehouses"
	"github.com/angelmondragon/stockyard-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
)

type fakeWarehouses struct {
	getFn func(ctx context.Context, id uuid.UUID) (*warehouses.Summary, error)
}

func (f fakeWarehouses) GetWarehouseSummary(ctx context.Context, id uuid.UUID) (*warehouses.Summary, error) {
	return f.getFn(ctx, id)
}

func knownWarehouse(ctx context.Context, id uuid.UUID) (*warehouses.Summary, error) {
	return &warehouses.Summary{ID: id, Name: "Bhiwandi Hub"}, nil
}

func countDrafts(t *testing.T, repo *Repository) int64 {
	t.Helper()
	var n int64
	require.NoError(t, repo.db.Model(&models.BookingDraft{}).Count(&n).Error)
	return n
}

func TestValidateAndCreateDraftPersists(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo, fakeWarehouses{getFn: knownWarehouse}, NewValidator(fixedClock), nil)
	require.NoError(t, err)

	draft, err := svc.ValidateAndCreateDraft(context.Background(), validDraftInput())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, draft.ID)

	stored, err := svc.GetDraft(context.Background(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "priya@example.com", stored.Email)
	assert.Equal(t, "Raman Textiles", stored.CompanyName)
}

func TestValidateAndCreateDraftInvalidInputPersistsNothing(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo, fakeWarehouses{getFn: knownWarehouse}, NewValidator(fixedClock), nil)
	require.NoError(t, err)

	input := validDraftInput()
	input.Phone = "987654321"

	_, err = svc.ValidateAndCreateDraft(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Zero(t, countDrafts(t, repo))
}

func TestValidateAndCreateDraftUnknownWarehouse(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	missing := fakeWarehouses{getFn: func(context.Context, uuid.UUID) (*warehouses.Summary, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "warehouse not found")
	}}
	svc, err := NewService(repo, missing, NewValidator(fixedClock), nil)
	require.NoError(t, err)

	_, err = svc.ValidateAndCreateDraft(context.Background(), validDraftInput())
	details := detailsOf(t, err)
	assert.Contains(t, details, "warehouseId")
	assert.Zero(t, countDrafts(t, repo))
}

func TestGetDraftNotFound(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)), fakeWarehouses{getFn: knownWarehouse}, nil, nil)
	require.NoError(t, err)

	_, err = svc.GetDraft(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
