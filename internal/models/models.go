package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry keyed by the upstream product id
type Product struct {
	ID            int64     `db:"id" json:"id"`
	ProductID     int64     `db:"product_id" json:"product_id"`
	ClientItemID  *string   `db:"client_item_id" json:"client_item_id,omitempty"`
	Name          string    `db:"name" json:"name"`
	Slug          *string   `db:"slug" json:"slug,omitempty"`
	Images        JSON      `db:"images" json:"images,omitempty"`
	Status        string    `db:"status" json:"status"`
	AverageRating float64   `db:"average_rating" json:"average_rating"`
	TotalReviews  int       `db:"total_reviews" json:"total_reviews"`
	SoldByWeight  bool      `db:"sold_by_weight" json:"sold_by_weight"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Inventory is per-store stock for a product. ProductID is the internal key.
type Inventory struct {
	ID           int64           `db:"id" json:"id"`
	ProductID    int64           `db:"product_id" json:"product_id"`
	StoreID      int64           `db:"store_id" json:"store_id"`
	Stock        float64         `db:"stock" json:"stock"`
	Tax          *string         `db:"tax" json:"tax,omitempty"`
	MRP          decimal.Decimal `db:"mrp" json:"mrp"`
	Discount     decimal.Decimal `db:"discount" json:"discount"`
	Unit         int             `db:"unit" json:"unit"`
	Aisle        *string         `db:"aisle" json:"aisle,omitempty"`
	Rack         *string         `db:"rack" json:"rack,omitempty"`
	Shelf        *string         `db:"shelf" json:"shelf,omitempty"`
	Status       string          `db:"status" json:"status"`
	LocationData JSON            `db:"location_data" json:"location_data,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Customer is synced from the customer service; orders refer to it by CustomerID only
type Customer struct {
	ID         int64     `db:"id" json:"id"`
	CustomerID string    `db:"customer_id" json:"customer_id"`
	Name       string    `db:"name" json:"name"`
	Email      *string   `db:"email" json:"email,omitempty"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	Address    *string   `db:"address" json:"address,omitempty"`
	City       *string   `db:"city" json:"city,omitempty"`
	Pincode    *string   `db:"pincode" json:"pincode,omitempty"`
	Metadata   JSON      `db:"customer_metadata" json:"customer_metadata,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Order is a retail order received from the order service
type Order struct {
	ID               int64           `db:"id" json:"id"`
	OrderID          int64           `db:"order_id" json:"order_id"`
	ReferenceNumber  string          `db:"reference_number" json:"reference_number"`
	CustomerID       string          `db:"customer_id" json:"customer_id"`
	CustomerName     string          `db:"customer_name" json:"customer_name"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Discount         decimal.Decimal `db:"discount" json:"discount"`
	Shipping         decimal.Decimal `db:"shipping" json:"shipping"`
	ExtraCharges     decimal.Decimal `db:"extra_charges" json:"extra_charges"`
	Status           string          `db:"status" json:"status"`
	PaymentStatus    string          `db:"payment_status" json:"payment_status"`
	OrderType        string          `db:"order_type" json:"order_type"`
	PickupLocationID *int64          `db:"pickup_location_id" json:"pickup_location_id,omitempty"`
	PreferredDate    *string         `db:"preferred_date" json:"preferred_date,omitempty"`
	SlotType         string          `db:"slot_type" json:"slot_type"`
	SlotStartTime    *string         `db:"slot_start_time" json:"slot_start_time,omitempty"`
	SlotEndTime      *string         `db:"slot_end_time" json:"slot_end_time,omitempty"`
	PickingStatus    PickingStatus   `db:"picking_status" json:"picking_status"`
	PackedAt         *time.Time      `db:"packed_at" json:"packed_at,omitempty"`
	RawPayload       JSON            `db:"raw_payload" json:"-"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem is one ordered line. ProductID is the internal product key,
// ProductExternalID the upstream product id.
type OrderItem struct {
	ID                int64           `db:"id" json:"id"`
	OrderID           int64           `db:"order_id" json:"order_id"`
	ProductID         int64           `db:"product_id" json:"product_id"`
	ProductExternalID int64           `db:"product_item_id" json:"product_item_id"`
	OrderedQuantity   float64         `db:"ordered_quantity" json:"ordered_quantity"`
	PickedQuantity    float64         `db:"picked_quantity" json:"picked_quantity"`
	Status            string          `db:"status" json:"status"`
	MRP               decimal.Decimal `db:"mrp" json:"mrp"`
	Discount          decimal.Decimal `db:"discount" json:"discount"`
	Unit              int             `db:"unit" json:"unit"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// PickingActivity is an append-only audit row
type PickingActivity struct {
	ID        int64          `db:"id" json:"id"`
	OrderID   int64          `db:"order_id" json:"order_id"`
	Action    ActivityAction `db:"action" json:"action"`
	ProductID *int64         `db:"product_id" json:"product_id,omitempty"`
	Quantity  *float64       `db:"quantity" json:"quantity,omitempty"`
	Method    *string        `db:"picking_method" json:"picking_method,omitempty"`
	AgentID   *int64         `db:"picker_agent_id" json:"picker_agent_id,omitempty"`
	Details   JSON           `db:"details" json:"details,omitempty"`
	PickedAt  time.Time      `db:"picked_at" json:"picked_at"`
}

// CrateLabel is the packed crate for a completed order
type CrateLabel struct {
	ID        int64     `db:"id" json:"id"`
	OrderID   int64     `db:"order_id" json:"order_id"`
	Label     string    `db:"crate_label" json:"crate_label"`
	Weight    *float64  `db:"weight" json:"weight,omitempty"`
	Items     Manifest  `db:"items_data" json:"items_data"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Agent is a picker/packer user
type Agent struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     *string   `db:"full_name" json:"full_name,omitempty"`
	Email        *string   `db:"email" json:"email,omitempty"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// PickingStatus is the operational picking state of an order
type PickingStatus string

const (
	PickingNotStarted PickingStatus = "NOT_STARTED"
	PickingInProgress PickingStatus = "IN_PROGRESS"
	PickingCompleted  PickingStatus = "COMPLETED"
)

// Order statuses
const (
	OrderStatusPending = "PENDING"
	OrderStatusPacked  = "PACKED"
)

// Catalog/agent statuses
const (
	StatusEnabled = "ENABLED"
	AgentActive   = "ACTIVE"
)

// ActivityAction names an activity log event
type ActivityAction string

const (
	ActionPickingStarted   ActivityAction = "PICKING_STARTED"
	ActionItemPicked       ActivityAction = "ITEM_PICKED"
	ActionPickingCompleted ActivityAction = "PICKING_COMPLETED"
)
