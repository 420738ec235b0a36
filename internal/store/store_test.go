package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"picker-service/internal/models"
	apperrors "picker-service/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore connects to TEST_DATABASE_URL and migrates it. These are
// integration tests and skip without a database.
func testStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate())
	return store
}

// uniqueID keeps rows from separate runs apart
func uniqueID() int64 {
	return time.Now().UnixNano() % 1_000_000_000_000
}

func createProduct(t *testing.T, ctx context.Context, s *Store) *models.Product {
	t.Helper()
	product := &models.Product{
		ProductID: uniqueID(),
		Name:      "Basmati Rice 1kg",
		Status:    models.StatusEnabled,
	}
	require.NoError(t, s.UpsertProduct(ctx, product))
	return product
}

func TestUpsertProduct_FullReplace(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	slug := fmt.Sprintf("rice-%d", uniqueID())
	product := &models.Product{ProductID: uniqueID(), Name: "Rice", Slug: &slug, Status: models.StatusEnabled, TotalReviews: 4}
	require.NoError(t, s.UpsertProduct(ctx, product))
	firstID := product.ID

	replacement := &models.Product{ProductID: product.ProductID, Name: "Brown Rice", Status: "DISABLED"}
	require.NoError(t, s.UpsertProduct(ctx, replacement))
	assert.Equal(t, firstID, replacement.ID)

	stored, err := s.FindProductByExternalID(ctx, product.ProductID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Brown Rice", stored.Name)
	assert.Nil(t, stored.Slug)
	assert.Equal(t, 0, stored.TotalReviews)
}

func TestFindProductByExternalID_Missing(t *testing.T) {
	s := testStore(t)

	product, err := s.FindProductByExternalID(context.Background(), -1)
	assert.NoError(t, err)
	assert.Nil(t, product)
}

func TestDecrementInventoryStock_ClampsAtZero(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	product := createProduct(t, ctx, s)

	inv := &models.Inventory{ProductID: product.ID, StoreID: 7, Stock: 3, Unit: 1, Status: models.StatusEnabled}
	require.NoError(t, s.UpsertInventory(ctx, inv))

	stock, err := s.DecrementInventoryStock(ctx, product.ID, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, stock)

	stock, err = s.DecrementInventoryStock(ctx, product.ID, 7, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stock)

	_, err = s.DecrementInventoryStock(ctx, product.ID, 8, 1)
	var notFound *apperrors.ErrNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestCreateOrder_DuplicateExternalID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id := uniqueID()
	order := &models.Order{
		OrderID:         id,
		ReferenceNumber: fmt.Sprintf("REF-%d", id),
		Amount:          decimal.NewFromFloat(120.5),
		Status:          models.OrderStatusPending,
		PaymentStatus:   "PENDING",
		OrderType:       "PICKUP",
		SlotType:        "ASAP",
		PickingStatus:   models.PickingNotStarted,
	}
	require.NoError(t, s.CreateOrder(ctx, order))
	assert.NotZero(t, order.ID)

	dup := *order
	dup.ReferenceNumber = fmt.Sprintf("REF-%d-B", id)
	err := s.CreateOrder(ctx, &dup)
	var conflict *apperrors.ErrConflict
	assert.True(t, errors.As(err, &conflict))
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id := uniqueID()
	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(repo Repository) error {
		order := &models.Order{
			OrderID:         id,
			ReferenceNumber: fmt.Sprintf("REF-%d", id),
			Status:          models.OrderStatusPending,
			PaymentStatus:   "PENDING",
			OrderType:       "PICKUP",
			SlotType:        "ASAP",
			PickingStatus:   models.PickingNotStarted,
		}
		require.NoError(t, repo.CreateOrder(ctx, order))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	order, err := s.FindOrderByExternalID(ctx, id)
	assert.NoError(t, err)
	assert.Nil(t, order)
}

func TestUpdatePickedQuantity_CheckConstraint(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	product := createProduct(t, ctx, s)

	id := uniqueID()
	order := &models.Order{
		OrderID:         id,
		ReferenceNumber: fmt.Sprintf("REF-%d", id),
		Status:          models.OrderStatusPending,
		PaymentStatus:   "PENDING",
		OrderType:       "PICKUP",
		SlotType:        "ASAP",
		PickingStatus:   models.PickingNotStarted,
	}
	require.NoError(t, s.CreateOrder(ctx, order))

	item := &models.OrderItem{
		OrderID:           order.ID,
		ProductID:         product.ID,
		ProductExternalID: product.ProductID,
		OrderedQuantity:   2,
		Status:            models.OrderStatusPending,
		Unit:              1,
	}
	require.NoError(t, s.CreateOrderItem(ctx, item))

	assert.NoError(t, s.UpdatePickedQuantity(ctx, item.ID, 2))
	assert.Error(t, s.UpdatePickedQuantity(ctx, item.ID, 3))
}
