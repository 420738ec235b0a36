package service

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"picker-service/internal/models"
	"picker-service/internal/store"
	"picker-service/internal/store/storetest"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOrderNotifier struct {
	mock.Mock
}

func (m *MockOrderNotifier) UpdateStatus(ctx context.Context, referenceNumber, status string, crates []string, meta PackageMetadata) error {
	args := m.Called(ctx, referenceNumber, status, crates, meta)
	return args.Error(0)
}

type MockInventoryNotifier struct {
	mock.Mock
}

func (m *MockInventoryNotifier) UpdateStock(ctx context.Context, productExternalID, storeID int64, stock float64) error {
	args := m.Called(ctx, productExternalID, storeID, stock)
	return args.Error(0)
}

func (m *MockStockCache) GetStock(ctx context.Context, productExternalID, storeID int64) (float64, bool, error) {
	args := m.Called(ctx, productExternalID, storeID)
	return args.Get(0).(float64), args.Bool(1), args.Error(2)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishOrderIngested(ctx context.Context, event *models.OrderIngestedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishPickingEvent(ctx context.Context, event *models.PickingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockStockCache struct {
	mock.Mock
}

func (m *MockStockCache) SetStock(ctx context.Context, productExternalID, storeID int64, stock float64) error {
	args := m.Called(ctx, productExternalID, storeID, stock)
	return args.Error(0)
}

// item builds an order line as the order service sends it
func item(id int64, name string, ordered interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":   id,
		"name": name,
		"slug": name,
		"orderDetails": map[string]interface{}{
			"orderedQuantity": ordered,
			"mrp":             "12.50",
			"discount":        1,
		},
	}
}

// order builds an order record
func order(id int64, ref string, items ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":              id,
		"referenceNumber": ref,
		"customer":        map[string]interface{}{"id": "C-9", "name": "Asha"},
		"amount":          "250.75",
		"type":            map[string]interface{}{"name": "DELIVERY"},
		"pickupLocation":  map[string]interface{}{"id": 7},
		"slotType":        "SCHEDULED",
		"items":           items,
	}
}

// envelope wraps data in a successful webhook acknowledgment
func envelope(t *testing.T, data interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"code":   200,
		"status": "SUCCESS",
		"data":   data,
	})
	require.NoError(t, err)
	return body
}

// seedLine describes an order line for seedOrder
type seedLine struct {
	productID int64
	ordered   float64
	stock     *float64
}

func stock(v float64) *float64 { return &v }

var seedSeq int64 = 90000

// seedOrder writes products, inventory at the pickup location and an order
// straight into the fake store
func seedOrder(t *testing.T, st *storetest.Store, ref string, pickup *int64, lines ...seedLine) *models.Order {
	t.Helper()
	ctx := context.Background()

	o := &models.Order{
		OrderID:          atomic.AddInt64(&seedSeq, 1),
		ReferenceNumber:  ref,
		Status:           models.OrderStatusPending,
		PickingStatus:    models.PickingNotStarted,
		PickupLocationID: pickup,
	}
	require.NoError(t, st.CreateOrder(ctx, o))

	for _, line := range lines {
		product, err := st.FindProductByExternalID(ctx, line.productID)
		require.NoError(t, err)
		if product == nil {
			product = &models.Product{ProductID: line.productID, Name: "product", Status: models.StatusEnabled}
			require.NoError(t, st.UpsertProduct(ctx, product))
		}
		if line.stock != nil && pickup != nil {
			require.NoError(t, st.UpsertInventory(ctx, &models.Inventory{
				ProductID: product.ID,
				StoreID:   *pickup,
				Stock:     *line.stock,
				Unit:      1,
				Status:    models.StatusEnabled,
			}))
		}
		require.NoError(t, st.CreateOrderItem(ctx, &models.OrderItem{
			OrderID:           o.ID,
			ProductID:         product.ID,
			ProductExternalID: product.ProductID,
			OrderedQuantity:   line.ordered,
			Status:            models.OrderStatusPending,
			Unit:              1,
		}))
	}
	return o
}

func storeFilter() store.OrderFilter {
	return store.OrderFilter{Limit: 100}
}
