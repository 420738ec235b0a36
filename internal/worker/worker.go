package worker

import (
	"context"
	"fmt"

	"picker-service/internal/broker"
	"picker-service/internal/service"
	"picker-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageSource is the consumer the worker drains
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// IngestWorker feeds webhook envelopes from kafka through the same services
// the HTTP webhooks use
type IngestWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewIngestWorker creates a new ingest worker
func NewIngestWorker(
	consumer MessageSource,
	ingestion *service.IngestionService,
	catalog *service.CatalogService,
) *IngestWorker {
	w := &IngestWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       util.Component("ingest-worker"),
	}

	w.eventHandler.On(broker.WebhookOrder, func(ctx context.Context, body []byte) error {
		result, err := ingestion.Ingest(ctx, body)
		if err != nil {
			return fmt.Errorf("order webhook rejected: %w", err)
		}
		w.logBatch("order", len(result.Results))
		return nil
	})
	w.eventHandler.On(broker.WebhookProduct, w.catalogHandler("product", catalog.ProductWebhook))
	w.eventHandler.On(broker.WebhookInventory, w.catalogHandler("inventory", catalog.InventoryWebhook))
	w.eventHandler.On(broker.WebhookCustomer, w.catalogHandler("customer", catalog.CustomerWebhook))

	return w
}

func (w *IngestWorker) catalogHandler(
	kind string,
	fn func(context.Context, []byte) (*service.CatalogBatchResult, error),
) func(context.Context, []byte) error {
	return func(ctx context.Context, body []byte) error {
		result, err := fn(ctx, body)
		if err != nil {
			return fmt.Errorf("%s webhook rejected: %w", kind, err)
		}
		w.logBatch(kind, result.Processed)
		return nil
	}
}

func (w *IngestWorker) logBatch(kind string, processed int) {
	w.logger.Info("Processed webhook from kafka", zap.String("kind", kind), zap.Int("processed", processed))
}

// Handle processes one message
func (w *IngestWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Start starts the worker
func (w *IngestWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting ingest worker")
	return w.consumer.StartConsuming(ctx, w.Handle)
}

// Stop stops the worker
func (w *IngestWorker) Stop() error {
	w.logger.Info("Stopping ingest worker")
	return w.consumer.Close()
}
