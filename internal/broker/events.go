package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"picker-service/internal/models"
	"picker-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// NewBaseEvent stamps a fresh event id and time
func NewBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// PublishOrderIngested publishes OrderIngested event
func (ep *EventPublisher) PublishOrderIngested(ctx context.Context, event *models.OrderIngestedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event.EventType, event)
}

// PublishPickingEvent publishes a picking lifecycle event
func (ep *EventPublisher) PublishPickingEvent(ctx context.Context, event *models.PickingEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event.EventType, event)
}

// Webhook kinds carried in the "webhook-type" message header
const (
	WebhookOrder     = "order"
	WebhookProduct   = "product"
	WebhookInventory = "inventory"
	WebhookCustomer  = "customer"
)

// WebhookHeader names the kafka header that selects the webhook kind
const WebhookHeader = "webhook-type"

// EventHandler routes inbound webhook envelopes by kind
type EventHandler struct {
	handlers map[string]func(context.Context, []byte) error
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{
		handlers: make(map[string]func(context.Context, []byte) error),
		logger:   util.Component("events"),
	}
}

// On registers the handler for a webhook kind
func (eh *EventHandler) On(kind string, handler func(context.Context, []byte) error) {
	eh.handlers[kind] = handler
}

// HandleMessage routes a message to the handler for its kind. Messages
// without a kind header are treated as order webhooks.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	kind := WebhookOrder
	for _, h := range msg.Headers {
		if h.Key == WebhookHeader {
			kind = strings.ToLower(strings.TrimSpace(string(h.Value)))
		}
	}

	handler, ok := eh.handlers[kind]
	if !ok {
		util.WebhookMessagesTotal.WithLabelValues(kind, "unhandled").Inc()
		eh.logger.Warn("Unhandled webhook kind", zap.String("kind", kind), zap.Int64("offset", msg.Offset))
		return nil
	}

	eh.logger.Debug("Handling webhook message", zap.String("kind", kind), zap.Int64("offset", msg.Offset))
	if err := handler(ctx, msg.Value); err != nil {
		util.WebhookMessagesTotal.WithLabelValues(kind, "failed").Inc()
		return err
	}
	util.WebhookMessagesTotal.WithLabelValues(kind, "success").Inc()
	return nil
}
