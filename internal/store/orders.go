package store

import (
	"context"
	"time"

	"picker-service/internal/models"
	apperrors "picker-service/pkg/errors"

	"github.com/jmoiron/sqlx"
)

// FindOrderByExternalID looks an order up by upstream order id
func (r *queries) FindOrderByExternalID(ctx context.Context, externalID int64) (*models.Order, error) {
	var order models.Order
	found, err := r.get(ctx, &order, "SELECT * FROM orders WHERE order_id = $1", externalID)
	if err != nil || !found {
		return nil, err
	}
	return &order, nil
}

// FindOrderByReference looks an order up by reference number
func (r *queries) FindOrderByReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	found, err := r.get(ctx, &order, "SELECT * FROM orders WHERE reference_number = $1", reference)
	if err != nil || !found {
		return nil, err
	}
	return &order, nil
}

// GetOrder retrieves an order by internal id
func (r *queries) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	found, err := r.get(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("order", id)
	}
	return &order, nil
}

// GetOrderForUpdate retrieves an order and holds its row lock until the
// surrounding transaction ends
func (r *queries) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	found, err := r.get(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("order", id)
	}
	return &order, nil
}

// ListOrders retrieves orders, newest first
func (r *queries) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	orders := []models.Order{}
	limit := limitOrDefault(filter.Limit)
	if filter.Status != "" {
		err := sqlx.SelectContext(ctx, r.q, &orders,
			"SELECT * FROM orders WHERE status = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3",
			filter.Status, limit, filter.Offset)
		return orders, err
	}
	err := sqlx.SelectContext(ctx, r.q, &orders,
		"SELECT * FROM orders ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2", limit, filter.Offset)
	return orders, err
}

// CreateOrder creates a new order
func (r *queries) CreateOrder(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (order_id, reference_number, customer_id, customer_name, amount, discount,
			shipping, extra_charges, status, payment_status, order_type, pickup_location_id,
			preferred_date, slot_type, slot_start_time, slot_end_time, picking_status, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at, updated_at`

	_, err := r.get(ctx, o, query,
		o.OrderID, o.ReferenceNumber, o.CustomerID, o.CustomerName, o.Amount, o.Discount,
		o.Shipping, o.ExtraCharges, o.Status, o.PaymentStatus, o.OrderType, o.PickupLocationID,
		o.PreferredDate, o.SlotType, o.SlotStartTime, o.SlotEndTime, o.PickingStatus, o.RawPayload)
	return translate(err)
}

// UpdatePickingStatus updates the operational picking status
func (r *queries) UpdatePickingStatus(ctx context.Context, orderID int64, status models.PickingStatus) error {
	return r.exec(ctx, apperrors.NotFound("order", orderID),
		"UPDATE orders SET picking_status = $1, updated_at = NOW() WHERE id = $2", status, orderID)
}

// MarkOrderPacked sets status PACKED and picking status COMPLETED
func (r *queries) MarkOrderPacked(ctx context.Context, orderID int64, packedAt time.Time) error {
	return r.exec(ctx, apperrors.NotFound("order", orderID), `
		UPDATE orders SET status = $1, picking_status = $2, packed_at = $3, updated_at = NOW()
		WHERE id = $4`,
		models.OrderStatusPacked, models.PickingCompleted, packedAt, orderID)
}

// CreateOrderItem creates a new order item
func (r *queries) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, product_item_id, ordered_quantity,
			picked_quantity, status, mrp, discount, unit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	_, err := r.get(ctx, item, query,
		item.OrderID, item.ProductID, item.ProductExternalID, item.OrderedQuantity,
		item.PickedQuantity, item.Status, item.MRP, item.Discount, item.Unit)
	return translate(err)
}

// ListOrderItems retrieves all items for an order
func (r *queries) ListOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := sqlx.SelectContext(ctx, r.q, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// UpdatePickedQuantity stores a new picked total for a line
func (r *queries) UpdatePickedQuantity(ctx context.Context, itemID int64, quantity float64) error {
	return r.exec(ctx, apperrors.NotFound("order item", itemID),
		"UPDATE order_items SET picked_quantity = $1, updated_at = NOW() WHERE id = $2", quantity, itemID)
}

// CreatePickingActivity appends an activity log row
func (r *queries) CreatePickingActivity(ctx context.Context, a *models.PickingActivity) error {
	query := `
		INSERT INTO picking_activities (order_id, action, product_id, quantity, picking_method,
			picker_agent_id, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, picked_at`

	_, err := r.get(ctx, a, query,
		a.OrderID, a.Action, a.ProductID, a.Quantity, a.Method, a.AgentID, a.Details)
	return translate(err)
}

// ListPickingActivities retrieves the activity log for an order in write order
func (r *queries) ListPickingActivities(ctx context.Context, orderID int64) ([]models.PickingActivity, error) {
	activities := []models.PickingActivity{}
	err := sqlx.SelectContext(ctx, r.q, &activities,
		"SELECT * FROM picking_activities WHERE order_id = $1 ORDER BY id", orderID)
	return activities, err
}

// CreateCrateLabel persists a crate label
func (r *queries) CreateCrateLabel(ctx context.Context, c *models.CrateLabel) error {
	query := `
		INSERT INTO crate_labels (order_id, crate_label, weight, items_data)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	_, err := r.get(ctx, c, query, c.OrderID, c.Label, c.Weight, c.Items)
	return translate(err)
}

// FindCrateLabel looks a crate up by label
func (r *queries) FindCrateLabel(ctx context.Context, label string) (*models.CrateLabel, error) {
	var crate models.CrateLabel
	found, err := r.get(ctx, &crate, "SELECT * FROM crate_labels WHERE crate_label = $1", label)
	if err != nil || !found {
		return nil, err
	}
	return &crate, nil
}

// ListCrateLabels retrieves all crates for an order
func (r *queries) ListCrateLabels(ctx context.Context, orderID int64) ([]models.CrateLabel, error) {
	crates := []models.CrateLabel{}
	err := sqlx.SelectContext(ctx, r.q, &crates,
		"SELECT * FROM crate_labels WHERE order_id = $1 ORDER BY id", orderID)
	return crates, err
}
