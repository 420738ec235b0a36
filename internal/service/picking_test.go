package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"picker-service/internal/models"
	"picker-service/internal/store/storetest"
	apperrors "picker-service/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type pickingFixture struct {
	st        *storetest.Store
	orders    *MockOrderNotifier
	inventory *MockInventoryNotifier
	svc       *PickingService
}

func newPickingFixture(publisher EventPublisher) *pickingFixture {
	st := storetest.New()
	orders := new(MockOrderNotifier)
	inventory := new(MockInventoryNotifier)
	packer := NewPacker(orders, NewInventorySync(st, inventory, nil))
	return &pickingFixture{
		st:        st,
		orders:    orders,
		inventory: inventory,
		svc:       NewPickingService(st, packer, publisher),
	}
}

func (f *pickingFixture) pick(t *testing.T, orderID, productID int64, qty float64) *AddItemResult {
	t.Helper()
	res, err := f.svc.AddItem(context.Background(), &AddItemRequest{OrderID: orderID, ProductID: productID, Quantity: &qty}, nil)
	require.NoError(t, err)
	return res
}

func pickupAt(id int64) *int64 { return &id }

func TestPicking_FullScenario(t *testing.T) {
	publisher := new(MockEventPublisher)
	publisher.On("PublishPickingEvent", mock.Anything, mock.Anything).Return(nil).Times(4)
	f := newPickingFixture(publisher)
	ctx := context.Background()
	agent := int64(3)

	o := seedOrder(t, f.st, "REF-123", pickupAt(7),
		seedLine{productID: 101, ordered: 5, stock: stock(10)},
		seedLine{productID: 102, ordered: 2, stock: stock(1)},
	)

	manifest := models.Manifest{"101": 5, "102": 2}
	f.orders.On("UpdateStatus", mock.Anything, "REF-123", models.OrderStatusPacked, []string{"CRATE-REF-123"},
		PackageMetadata{Packages: map[string]PackageInfo{"CRATE-REF-123": {Weight: 0, Items: manifest}}}).
		Return(nil).Once()
	f.inventory.On("UpdateStock", mock.Anything, int64(101), int64(7), 5.0).Return(nil).Once()
	f.inventory.On("UpdateStock", mock.Anything, int64(102), int64(7), 0.0).Return(nil).Once()

	started, err := f.svc.Start(ctx, o.ID, &agent)
	require.NoError(t, err)
	assert.Equal(t, models.PickingInProgress, started.PickingStatus)
	assert.Equal(t, "REF-123", started.ReferenceNumber)

	res := f.pick(t, o.ID, 101, 5)
	assert.Equal(t, 5.0, res.PickedQuantity)
	assert.Zero(t, res.Remaining)
	res = f.pick(t, o.ID, 102, 2)
	assert.Equal(t, 2.0, res.PickedQuantity)

	done, err := f.svc.Complete(ctx, o.ID, &agent)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPacked, done.Status)
	assert.Equal(t, "CRATE-REF-123", done.CrateLabel)
	assert.Equal(t, manifest, done.Manifest)
	require.NotNil(t, done.Dispatch)
	assert.True(t, done.Dispatch.OrderNotified)
	require.Len(t, done.Dispatch.Inventory, 2)
	for _, r := range done.Dispatch.Inventory {
		assert.Equal(t, ResultSuccess, r.Status)
		assert.True(t, r.Notified)
	}

	stored, err := f.st.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPacked, stored.Status)
	assert.Equal(t, models.PickingCompleted, stored.PickingStatus)
	assert.NotNil(t, stored.PackedAt)

	crates, err := f.st.ListCrateLabels(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, crates, 1)
	assert.Equal(t, manifest, crates[0].Items)

	activities, err := f.st.ListPickingActivities(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, activities, 4)
	assert.Equal(t, models.ActionPickingStarted, activities[0].Action)
	assert.Equal(t, models.ActionItemPicked, activities[1].Action)
	assert.Equal(t, models.ActionItemPicked, activities[2].Action)
	assert.Equal(t, models.ActionPickingCompleted, activities[3].Action)
	require.NotNil(t, activities[0].AgentID)
	assert.Equal(t, agent, *activities[0].AgentID)
	assert.JSONEq(t, `{"crate_label":"CRATE-REF-123"}`, string(activities[3].Details))

	f.orders.AssertExpectations(t)
	f.inventory.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestPicking_RejectsOverPick(t *testing.T) {
	f := newPickingFixture(nil)
	ctx := context.Background()
	o := seedOrder(t, f.st, "REF-OVER", pickupAt(7), seedLine{productID: 201, ordered: 2})

	_, err := f.svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)
	f.pick(t, o.ID, 201, 1)

	qty := 1.5
	_, err = f.svc.AddItem(ctx, &AddItemRequest{OrderID: o.ID, ProductID: 201, Quantity: &qty}, nil)
	require.Error(t, err)
	var validation *apperrors.ErrValidation
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, apperrors.CodeQuantityExceeded, validation.Code)
	assert.Equal(t, "Picked quantity (2.5) exceeds ordered quantity (2)", validation.Message)

	items, err := f.st.ListOrderItems(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, items[0].PickedQuantity)

	activities, err := f.st.ListPickingActivities(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, activities, 2)
}

func TestPicking_StateTransitions(t *testing.T) {
	f := newPickingFixture(nil)
	ctx := context.Background()
	o := seedOrder(t, f.st, "REF-STATE", nil, seedLine{productID: 301, ordered: 1})

	var transition *apperrors.ErrInvalidStateTransition

	_, err := f.svc.AddItem(ctx, &AddItemRequest{OrderID: o.ID, ProductID: 301}, nil)
	require.True(t, errors.As(err, &transition))
	assert.Equal(t, string(models.PickingNotStarted), transition.From)

	_, err = f.svc.Complete(ctx, o.ID, nil)
	require.True(t, errors.As(err, &transition))
	assert.Equal(t, string(models.PickingCompleted), transition.To)

	_, err = f.svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, o.ID, nil)
	require.True(t, errors.As(err, &transition))
	assert.Equal(t, string(models.PickingInProgress), transition.From)

	stored, err := f.st.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PickingInProgress, stored.PickingStatus)
}

func TestPicking_StartUnknownOrder(t *testing.T) {
	f := newPickingFixture(nil)

	_, err := f.svc.Start(context.Background(), 424242, nil)
	var notFound *apperrors.ErrNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestPicking_CompleteReportsUnpickedLines(t *testing.T) {
	f := newPickingFixture(nil)
	ctx := context.Background()
	o := seedOrder(t, f.st, "REF-SHORT", pickupAt(7),
		seedLine{productID: 401, ordered: 3},
		seedLine{productID: 402, ordered: 1},
		seedLine{productID: 403, ordered: 2},
	)

	_, err := f.svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)
	f.pick(t, o.ID, 401, 2)
	f.pick(t, o.ID, 402, 1)

	_, err = f.svc.Complete(ctx, o.ID, nil)
	var incomplete *apperrors.ErrIncompletePicking
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, 2, incomplete.Unpicked)

	stored, err := f.st.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PickingInProgress, stored.PickingStatus)
	crates, err := f.st.ListCrateLabels(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, crates)
	f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPicking_CompleteTwice(t *testing.T) {
	f := newPickingFixture(nil)
	ctx := context.Background()
	o := seedOrder(t, f.st, "REF-TWICE", nil, seedLine{productID: 501, ordered: 1})

	f.orders.On("UpdateStatus", mock.Anything, "REF-TWICE", models.OrderStatusPacked, mock.Anything, mock.Anything).
		Return(nil).Once()

	_, err := f.svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)
	f.pick(t, o.ID, 501, 1)
	_, err = f.svc.Complete(ctx, o.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, o.ID, nil)
	var transition *apperrors.ErrInvalidStateTransition
	require.True(t, errors.As(err, &transition))
	assert.Equal(t, string(models.PickingCompleted), transition.From)

	crates, err := f.st.ListCrateLabels(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, crates, 1)
	f.orders.AssertExpectations(t)
}

func TestPicking_CompleteWithoutItems(t *testing.T) {
	f := newPickingFixture(nil)
	ctx := context.Background()
	o := seedOrder(t, f.st, "REF-EMPTY", nil)

	_, err := f.svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, o.ID, nil)
	var validation *apperrors.ErrValidation
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, apperrors.CodeNoValidItems, validation.Code)
}

func TestPicking_DownstreamFailuresDoNotRollBack(t *testing.T) {
	f := newPickingFixture(nil)
	ctx := context.Background()
	o := seedOrder(t, f.st, "REF-DOWN", pickupAt(9),
		seedLine{productID: 601, ordered: 2, stock: stock(5)},
		seedLine{productID: 602, ordered: 1},
	)

	f.orders.On("UpdateStatus", mock.Anything, "REF-DOWN", models.OrderStatusPacked, mock.Anything, mock.Anything).
		Return(&UpstreamError{StatusCode: 503, Body: "unavailable"}).Once()
	f.inventory.On("UpdateStock", mock.Anything, int64(601), int64(9), 3.0).
		Return(errors.New("connection refused")).Once()

	_, err := f.svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)
	f.pick(t, o.ID, 601, 2)
	f.pick(t, o.ID, 602, 1)

	done, err := f.svc.Complete(ctx, o.ID, nil)
	require.NoError(t, err)
	assert.False(t, done.Dispatch.OrderNotified)
	assert.NotEmpty(t, done.Dispatch.OrderError)

	require.Len(t, done.Dispatch.Inventory, 2)
	first := done.Dispatch.Inventory[0]
	assert.Equal(t, ResultSuccess, first.Status)
	assert.Equal(t, 3.0, first.NewStock)
	assert.False(t, first.Notified)
	assert.Equal(t, "connection refused", first.NotifyError)

	second := done.Dispatch.Inventory[1]
	assert.Equal(t, ResultSkipped, second.Status)
	assert.Equal(t, int64(602), second.ProductID)

	stored, err := f.st.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPacked, stored.Status)
	assert.Equal(t, models.PickingCompleted, stored.PickingStatus)

	product, err := f.st.FindProductByExternalID(ctx, 601)
	require.NoError(t, err)
	inv, err := f.st.FindInventory(ctx, product.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, 3.0, inv.Stock)

	f.orders.AssertExpectations(t)
	f.inventory.AssertExpectations(t)
}

func TestPicking_InventoryDecrementFailureIsReported(t *testing.T) {
	f := newPickingFixture(nil)
	ctx := context.Background()
	o := seedOrder(t, f.st, "REF-DECR", pickupAt(7), seedLine{productID: 651, ordered: 1, stock: stock(4)})

	f.orders.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := f.svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)
	f.pick(t, o.ID, 651, 1)
	f.st.FailOn("DecrementInventoryStock", errors.New("deadlock detected"))

	done, err := f.svc.Complete(ctx, o.ID, nil)
	require.NoError(t, err)
	require.Len(t, done.Dispatch.Inventory, 1)
	assert.Equal(t, ResultFailed, done.Dispatch.Inventory[0].Status)
	assert.Equal(t, "deadlock detected", done.Dispatch.Inventory[0].Error)
	f.inventory.AssertNotCalled(t, "UpdateStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPicking_NoPickupLocationSkipsInventory(t *testing.T) {
	f := newPickingFixture(nil)
	ctx := context.Background()
	o := seedOrder(t, f.st, "REF-NOLOC", nil,
		seedLine{productID: 701, ordered: 1},
		seedLine{productID: 702, ordered: 1},
	)
	f.orders.On("UpdateStatus", mock.Anything, "REF-NOLOC", models.OrderStatusPacked, mock.Anything, mock.Anything).
		Return(nil).Once()

	_, err := f.svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)
	f.pick(t, o.ID, 701, 1)
	f.pick(t, o.ID, 702, 1)

	done, err := f.svc.Complete(ctx, o.ID, nil)
	require.NoError(t, err)
	require.Len(t, done.Dispatch.Inventory, 2)
	for _, r := range done.Dispatch.Inventory {
		assert.Equal(t, ResultSkipped, r.Status)
	}
	f.inventory.AssertNotCalled(t, "UpdateStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPicking_AddItemDefaults(t *testing.T) {
	f := newPickingFixture(nil)
	ctx := context.Background()
	agent := int64(12)
	o := seedOrder(t, f.st, "REF-DEF", nil, seedLine{productID: 801, ordered: 3})

	_, err := f.svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)

	res, err := f.svc.AddItem(ctx, &AddItemRequest{OrderID: o.ID, ProductID: 801}, &agent)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.PickedQuantity)
	assert.Equal(t, 3.0, res.OrderedQuantity)
	assert.Equal(t, 2.0, res.Remaining)

	activities, err := f.st.ListPickingActivities(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	picked := activities[1]
	require.NotNil(t, picked.Method)
	assert.Equal(t, DefaultPickMethod, *picked.Method)
	require.NotNil(t, picked.ProductID)
	assert.Equal(t, int64(801), *picked.ProductID)
	require.NotNil(t, picked.AgentID)
	assert.Equal(t, agent, *picked.AgentID)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(picked.Details, &details))
	assert.Equal(t, float64(801), details["product_id"])
	assert.Equal(t, "manual", details["method"])
	assert.Equal(t, 1.0, details["quantity"])
}

func TestPicking_AddItemRejections(t *testing.T) {
	f := newPickingFixture(nil)
	ctx := context.Background()
	o := seedOrder(t, f.st, "REF-REJ", nil, seedLine{productID: 901, ordered: 3})
	_, err := f.svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)

	zero, negative := 0.0, -2.0
	for _, qty := range []*float64{&zero, &negative} {
		_, err := f.svc.AddItem(ctx, &AddItemRequest{OrderID: o.ID, ProductID: 901, Quantity: qty}, nil)
		var validation *apperrors.ErrValidation
		require.True(t, errors.As(err, &validation))
		assert.Equal(t, apperrors.CodeInvalidQuantity, validation.Code)
	}

	_, err = f.svc.AddItem(ctx, &AddItemRequest{OrderID: o.ID, ProductID: 999}, nil)
	var notFound *apperrors.ErrNotFound
	assert.True(t, errors.As(err, &notFound))

	items, err := f.st.ListOrderItems(ctx, o.ID)
	require.NoError(t, err)
	assert.Zero(t, items[0].PickedQuantity)
}

func TestPicking_FractionalQuantities(t *testing.T) {
	f := newPickingFixture(nil)
	ctx := context.Background()
	o := seedOrder(t, f.st, "REF-FRAC", nil, seedLine{productID: 1001, ordered: 1.5})

	var sent PackageMetadata
	f.orders.On("UpdateStatus", mock.Anything, "REF-FRAC", models.OrderStatusPacked, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(4).(PackageMetadata) }).
		Return(nil).Once()

	_, err := f.svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)
	f.pick(t, o.ID, 1001, 0.5)
	res := f.pick(t, o.ID, 1001, 1)
	assert.Equal(t, 1.5, res.PickedQuantity)

	done, err := f.svc.Complete(ctx, o.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Manifest{"1001": 1}, done.Manifest)
	assert.Equal(t, models.Manifest{"1001": 1}, sent.Packages["CRATE-REF-FRAC"].Items)
}

func TestPicking_ConcurrentAddsNeverOverPick(t *testing.T) {
	f := newPickingFixture(nil)
	ctx := context.Background()
	o := seedOrder(t, f.st, "REF-RACE", nil, seedLine{productID: 1101, ordered: 5})
	_, err := f.svc.Start(ctx, o.ID, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.AddItem(ctx, &AddItemRequest{OrderID: o.ID, ProductID: 1101}, nil); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	items, err := f.st.ListOrderItems(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, items[0].PickedQuantity)
}

func TestPicking_PublishFailureIsNotFatal(t *testing.T) {
	publisher := new(MockEventPublisher)
	publisher.On("PublishPickingEvent", mock.Anything, mock.MatchedBy(func(e *models.PickingEvent) bool {
		return e.EventType == models.EventTypePickingStarted
	})).Return(errors.New("broker down")).Once()
	f := newPickingFixture(publisher)
	o := seedOrder(t, f.st, "REF-PUB", nil, seedLine{productID: 1201, ordered: 1})

	res, err := f.svc.Start(context.Background(), o.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PickingInProgress, res.PickingStatus)
	publisher.AssertExpectations(t)
}
