package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"picker-service/internal/broker"
	"picker-service/internal/models"
	"picker-service/internal/store"
	"picker-service/internal/util"
	apperrors "picker-service/pkg/errors"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EventPublisher is the outbound event stream. Publishing is best-effort.
type EventPublisher interface {
	PublishOrderIngested(ctx context.Context, event *models.OrderIngestedEvent) error
	PublishPickingEvent(ctx context.Context, event *models.PickingEvent) error
}

// errOrderExists aborts the order transaction when a concurrent delivery
// created the same order first
var errOrderExists = errors.New("order already exists")

// IngestionService reconciles order webhooks into the catalog and order stores
type IngestionService struct {
	uow       store.UnitOfWork
	catalog   *CatalogService
	publisher EventPublisher
	logger    *zap.Logger
}

// NewIngestionService creates a new ingestion service. publisher may be nil.
func NewIngestionService(uow store.UnitOfWork, catalog *CatalogService, publisher EventPublisher) *IngestionService {
	return &IngestionService{
		uow:       uow,
		catalog:   catalog,
		publisher: publisher,
		logger:    util.Component("ingestion"),
	}
}

// ItemFailure describes an order line that was skipped
type ItemFailure struct {
	Index     int    `json:"index"`
	ProductID int64  `json:"product_id,omitempty"`
	Code      string `json:"code"`
	Error     string `json:"error"`
}

// OrderResult is the outcome for one order of a webhook batch
type OrderResult struct {
	OrderID         int64         `json:"order_id,omitempty"`
	ReferenceNumber string        `json:"reference_number,omitempty"`
	Status          string        `json:"status"`
	ItemsCount      int           `json:"items_count,omitempty"`
	SkippedItems    []ItemFailure `json:"skipped_items,omitempty"`
	Code            string        `json:"code,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// BatchResult aggregates a webhook delivery. It reports success even when
// individual orders failed.
type BatchResult struct {
	Code    int           `json:"code"`
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Results []OrderResult `json:"results"`
}

// stagedItem is an order line whose product resolved
type stagedItem struct {
	product  *models.Product
	quantity float64
	mrp      decimal.Decimal
	discount decimal.Decimal
}

// Ingest processes a raw webhook body. Only an unacceptable envelope is an
// error; per-order problems are reported in the batch.
func (s *IngestionService) Ingest(ctx context.Context, body []byte) (*BatchResult, error) {
	env, err := DecodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	return s.IngestEnvelope(ctx, env)
}

// IngestEnvelope processes an already decoded envelope
func (s *IngestionService) IngestEnvelope(ctx context.Context, env *Envelope) (*BatchResult, error) {
	ctx, span := util.StartSpan(ctx, "IngestionService.IngestEnvelope")
	defer span.End()

	records, err := env.Orders()
	if err != nil {
		util.WebhookOrdersTotal.WithLabelValues("invalid_payload").Inc()
		return nil, util.FailSpan(span, err)
	}
	span.SetAttributes(attribute.Int("webhook.orders", len(records)))

	results := make([]OrderResult, 0, len(records))
	for _, raw := range records {
		result := s.processOrder(ctx, raw)
		util.WebhookOrdersTotal.WithLabelValues(result.Status).Inc()
		results = append(results, result)
	}

	return &BatchResult{
		Code:    200,
		Status:  ResultSuccess,
		Message: fmt.Sprintf("Processed %d orders", len(results)),
		Results: results,
	}, nil
}

func (s *IngestionService) processOrder(ctx context.Context, raw json.RawMessage) OrderResult {
	rec, err := decodeOrderRecord(raw)
	if err != nil {
		return s.failed(OrderResult{}, err)
	}
	result := OrderResult{OrderID: int64(rec.ID), ReferenceNumber: string(rec.ReferenceNumber)}
	if err := rec.validate(); err != nil {
		return s.failed(result, err)
	}

	existing, err := s.uow.FindOrderByExternalID(ctx, result.OrderID)
	if err != nil {
		return s.failed(result, fmt.Errorf("failed to check order existence: %w", err))
	}
	if existing != nil {
		s.logger.Info("Duplicate order delivery",
			zap.Int64("order_id", result.OrderID),
			zap.String("reference_number", result.ReferenceNumber))
		result.Status = ResultAlreadyExists
		return result
	}

	staged, skipped := s.stageItems(ctx, rec)
	result.SkippedItems = skipped
	if len(staged) == 0 {
		return s.failed(result, &apperrors.ErrValidation{
			Code:    apperrors.CodeNoValidItems,
			Message: "Order has no valid items",
		})
	}

	order := rec.model(raw)
	err = s.uow.RunInTx(ctx, func(repo store.Repository) error {
		return createOrderWithItems(ctx, repo, order, staged)
	})
	if err != nil {
		if s.lostCreateRace(ctx, err, result.OrderID) {
			result.Status = ResultAlreadyExists
			return result
		}
		return s.failed(result, err)
	}

	s.logger.Info("Order ingested",
		zap.Int64("id", order.ID),
		zap.Int64("order_id", order.OrderID),
		zap.String("reference_number", order.ReferenceNumber),
		zap.Int("items", len(staged)))

	s.publishIngested(ctx, order, len(staged))

	result.Status = ResultSuccess
	result.ItemsCount = len(staged)
	return result
}

// lostCreateRace reports whether a failed create lost to a concurrent
// delivery of the same order
func (s *IngestionService) lostCreateRace(ctx context.Context, err error, externalID int64) bool {
	if errors.Is(err, errOrderExists) {
		return true
	}
	var conflictErr *apperrors.ErrConflict
	if !errors.As(err, &conflictErr) {
		return false
	}
	existing, findErr := s.uow.FindOrderByExternalID(ctx, externalID)
	return findErr == nil && existing != nil
}

// createOrderWithItems writes the order and every line in one transaction
func createOrderWithItems(ctx context.Context, repo store.Repository, order *models.Order, staged []stagedItem) error {
	existing, err := repo.FindOrderByExternalID(ctx, order.OrderID)
	if err != nil {
		return err
	}
	if existing != nil {
		return errOrderExists
	}

	byRef, err := repo.FindOrderByReference(ctx, order.ReferenceNumber)
	if err != nil {
		return err
	}
	if byRef != nil {
		return &apperrors.ErrConflict{
			Message: fmt.Sprintf("reference number %s already belongs to order %d", order.ReferenceNumber, byRef.OrderID),
		}
	}

	if err := repo.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for _, line := range staged {
		item := &models.OrderItem{
			OrderID:           order.ID,
			ProductID:         line.product.ID,
			ProductExternalID: line.product.ProductID,
			OrderedQuantity:   line.quantity,
			Status:            models.OrderStatusPending,
			MRP:               line.mrp,
			Discount:          line.discount,
			Unit:              1,
		}
		if err := repo.CreateOrderItem(ctx, item); err != nil {
			return fmt.Errorf("failed to create item for product %d: %w", line.product.ProductID, err)
		}
	}
	return nil
}

// stageItems resolves each line's product. Lines whose product cannot be
// resolved are skipped. Repeated lines for one product are merged so that a
// product appears once per order.
func (s *IngestionService) stageItems(ctx context.Context, rec *orderRecord) ([]stagedItem, []ItemFailure) {
	var staged []stagedItem
	var skipped []ItemFailure
	index := make(map[int64]int)

	for i, raw := range rec.items() {
		item, err := decodeProductRecord(raw)
		if err != nil {
			skipped = append(skipped, s.skipItem(rec, i, 0, err))
			continue
		}

		quantity := float64(item.OrderDetails.OrderedQuantity)
		if quantity < 0 {
			skipped = append(skipped, s.skipItem(rec, i, item.externalID(), &apperrors.ErrValidation{
				Code:    apperrors.CodeInvalidQuantity,
				Message: "ordered quantity must not be negative",
			}))
			continue
		}

		product, err := s.catalog.resolveProduct(ctx, item)
		if err != nil {
			skipped = append(skipped, s.skipItem(rec, i, item.externalID(), err))
			continue
		}

		if pos, ok := index[product.ID]; ok {
			staged[pos].quantity += quantity
			continue
		}
		index[product.ID] = len(staged)
		staged = append(staged, stagedItem{
			product:  product,
			quantity: quantity,
			mrp:      item.OrderDetails.MRP.Decimal,
			discount: item.OrderDetails.Discount.Decimal,
		})
	}
	return staged, skipped
}

func (s *IngestionService) skipItem(rec *orderRecord, index int, productID int64, err error) ItemFailure {
	code, msg := failure(err)
	s.logger.Warn("Skipping order item",
		zap.Int64("order_id", int64(rec.ID)),
		zap.Int("index", index),
		zap.Int64("product_id", productID),
		zap.Error(err))
	return ItemFailure{Index: index, ProductID: productID, Code: code, Error: msg}
}

func (s *IngestionService) failed(result OrderResult, err error) OrderResult {
	result.Status = ResultFailed
	result.Code, result.Error = failure(err)
	log := s.logger.Warn
	if result.Code == CodeInternal {
		log = s.logger.Error
	}
	log("Failed to ingest order",
		zap.Int64("order_id", result.OrderID),
		zap.String("reference_number", result.ReferenceNumber),
		zap.String("code", result.Code),
		zap.Error(err))
	return result
}

func (s *IngestionService) publishIngested(ctx context.Context, order *models.Order, items int) {
	if s.publisher == nil {
		return
	}
	event := &models.OrderIngestedEvent{
		BaseEvent:       broker.NewBaseEvent(models.EventTypeOrderIngested),
		OrderID:         order.ID,
		ExternalOrderID: order.OrderID,
		ReferenceNumber: order.ReferenceNumber,
		ItemsCount:      items,
	}
	if err := s.publisher.PublishOrderIngested(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderIngested event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}
