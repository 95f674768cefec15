package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore-backend/internal/audit"
	"github.com/clinicore/clinicore-backend/internal/events"
	"github.com/clinicore/clinicore-backend/internal/inventory/repository"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/identity"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// mockStore captures the delta handed to Move
type mockStore struct {
	lastDelta int
	product   *repository.Product
}

func (m *mockStore) CreateProduct(ctx context.Context, p *repository.Product) error { return nil }

func (m *mockStore) GetProduct(ctx context.Context, id string) (*repository.Product, error) {
	return m.product, nil
}

func (m *mockStore) ListProducts(ctx context.Context, f repository.ProductFilter, page, perPage int) ([]*repository.Product, int64, error) {
	return nil, 0, nil
}

func (m *mockStore) UpdateProduct(ctx context.Context, p *repository.Product) error { return nil }

func (m *mockStore) Move(ctx context.Context, mv *repository.Movement, delta int) (*repository.Product, error) {
	m.lastDelta = delta
	return m.product, nil
}

func (m *mockStore) ListMovements(ctx context.Context, productID string, page, perPage int) ([]*repository.Movement, int64, error) {
	return nil, 0, nil
}

func (m *mockStore) Summary(ctx context.Context) (*repository.StockSummary, error) {
	return &repository.StockSummary{}, nil
}

func newTestService(store *mockStore) *InventoryService {
	log := logger.New("test", "development", "debug")
	return NewInventoryService(store, events.NewNop(log), audit.NewRecorder(nil, log), log)
}

func staffCtx() context.Context {
	return identity.WithIdentity(context.Background(), &identity.Identity{
		UserID:   "u1",
		TenantID: "t1",
		Role:     identity.RoleNurse,
	})
}

func TestMoveMapsTypeToDelta(t *testing.T) {
	cases := []struct {
		name      string
		mtype     string
		quantity  int
		wantDelta int
	}{
		{"inbound adds", repository.MovementIn, 10, 10},
		{"outbound subtracts", repository.MovementOut, 4, -4},
		{"expired subtracts", repository.MovementExpired, 2, -2},
		{"transfer subtracts", repository.MovementTransfer, 3, -3},
		{"adjustment keeps sign", repository.MovementAdjustment, -7, -7},
		{"positive adjustment", repository.MovementAdjustment, 5, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockStore{product: &repository.Product{ID: "pr1", CurrentStock: 50, MinStock: 5}}
			svc := newTestService(store)

			m := &repository.Movement{ProductID: "pr1", Type: tc.mtype, Quantity: tc.quantity}
			_, err := svc.Move(staffCtx(), m)

			require.NoError(t, err)
			assert.Equal(t, tc.wantDelta, store.lastDelta)
			assert.Equal(t, "u1", m.UserID)
		})
	}
}

func TestMoveRejectsUnknownType(t *testing.T) {
	svc := newTestService(&mockStore{})

	_, err := svc.Move(staffCtx(), &repository.Movement{ProductID: "pr1", Type: "donation", Quantity: 1})

	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestMoveRejectsNonPositiveQuantity(t *testing.T) {
	svc := newTestService(&mockStore{})

	for _, q := range []int{0, -5} {
		_, err := svc.Move(staffCtx(), &repository.Movement{ProductID: "pr1", Type: repository.MovementOut, Quantity: q})

		require.Error(t, err)
		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Contains(t, appErr.Details, "quantity")
	}
}

func TestMoveRequiresIdentity(t *testing.T) {
	svc := newTestService(&mockStore{})

	_, err := svc.Move(context.Background(), &repository.Movement{ProductID: "pr1", Type: repository.MovementIn, Quantity: 1})

	assert.ErrorIs(t, err, identity.ErrNoIdentity)
}
