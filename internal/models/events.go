package models

import "time"

// Event types
const (
	EventTypeOrderIngested    = "ORDER_INGESTED"
	EventTypePickingStarted   = "PICKING_STARTED"
	EventTypeItemPicked       = "ITEM_PICKED"
	EventTypePickingCompleted = "PICKING_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderIngestedEvent published when a webhook order is persisted
type OrderIngestedEvent struct {
	BaseEvent
	OrderID         int64  `json:"order_id"`
	ExternalOrderID int64  `json:"external_order_id"`
	ReferenceNumber string `json:"reference_number"`
	ItemsCount      int    `json:"items_count"`
}

// PickingEvent published after each committed picking transition
type PickingEvent struct {
	BaseEvent
	OrderID         int64    `json:"order_id"`
	ReferenceNumber string   `json:"reference_number"`
	AgentID         *int64   `json:"agent_id,omitempty"`
	ProductID       int64    `json:"product_id,omitempty"`
	Quantity        float64  `json:"quantity,omitempty"`
	Method          string   `json:"method,omitempty"`
	CrateLabel      string   `json:"crate_label,omitempty"`
	Manifest        Manifest `json:"manifest,omitempty"`
}
