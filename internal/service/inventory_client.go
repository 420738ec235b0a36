package service

import (
	"context"
	"errors"
	"time"

	"picker-service/internal/models"
	"picker-service/internal/store"
	"picker-service/internal/util"
	apperrors "picker-service/pkg/errors"

	"go.uber.org/zap"
)

// InventoryNotifier pushes new stock levels to the inventory service
type InventoryNotifier interface {
	UpdateStock(ctx context.Context, productExternalID, storeID int64, stock float64) error
}

// StockUpdateResult is the outcome of syncing one packed line
type StockUpdateResult struct {
	ProductID   int64   `json:"product_id"`
	StoreID     int64   `json:"store_id,omitempty"`
	Picked      float64 `json:"picked"`
	NewStock    float64 `json:"new_stock"`
	Status      string  `json:"status"`
	Notified    bool    `json:"notified"`
	Error       string  `json:"error,omitempty"`
	NotifyError string  `json:"notify_error,omitempty"`
}

// InventorySync decrements local stock for packed lines and pushes the new
// level downstream
type InventorySync struct {
	uow      store.UnitOfWork
	notifier InventoryNotifier
	stock    StockCache
	logger   *zap.Logger
}

// NewInventorySync creates a new inventory sync. stock may be nil.
func NewInventorySync(uow store.UnitOfWork, notifier InventoryNotifier, stock StockCache) *InventorySync {
	return &InventorySync{
		uow:      uow,
		notifier: notifier,
		stock:    stock,
		logger:   util.Component("inventory-sync"),
	}
}

// Apply decrements stock at the order's pickup location for every line,
// clamped at zero. Each line is independent: a failure is recorded in its
// result and the rest still run.
func (s *InventorySync) Apply(ctx context.Context, order *models.Order, items []models.OrderItem) []StockUpdateResult {
	ctx, span := util.StartSpan(ctx, "InventorySync.Apply")
	defer span.End()

	start := time.Now()
	defer func() {
		util.InventorySyncLatency.Observe(time.Since(start).Seconds())
	}()

	results := make([]StockUpdateResult, 0, len(items))
	for _, item := range items {
		results = append(results, s.applyItem(ctx, order, item))
	}
	return results
}

func (s *InventorySync) applyItem(ctx context.Context, order *models.Order, item models.OrderItem) StockUpdateResult {
	result := StockUpdateResult{ProductID: item.ProductExternalID, Picked: item.PickedQuantity}

	if order.PickupLocationID == nil {
		result.Status = ResultSkipped
		result.Error = "order has no pickup location"
		return result
	}
	result.StoreID = *order.PickupLocationID

	if item.PickedQuantity <= 0 {
		result.Status = ResultSkipped
		result.Error = "nothing picked"
		return result
	}

	stock, err := s.uow.DecrementInventoryStock(ctx, item.ProductID, result.StoreID, item.PickedQuantity)
	if err != nil {
		var notFoundErr *apperrors.ErrNotFound
		if errors.As(err, &notFoundErr) {
			result.Status = ResultSkipped
			result.Error = "no inventory at pickup location"
			return result
		}
		s.logger.Error("Failed to decrement inventory",
			zap.Int64("order_id", order.ID),
			zap.Int64("product_id", item.ProductExternalID),
			zap.Int64("store_id", result.StoreID),
			zap.Error(err))
		util.NotificationFailuresTotal.WithLabelValues("local_inventory").Inc()
		result.Status = ResultFailed
		result.Error = err.Error()
		return result
	}
	result.Status = ResultSuccess
	result.NewStock = stock

	if s.stock != nil {
		if err := s.stock.SetStock(ctx, item.ProductExternalID, result.StoreID, stock); err != nil {
			s.logger.Warn("Failed to mirror stock",
				zap.Int64("product_id", item.ProductExternalID),
				zap.Int64("store_id", result.StoreID),
				zap.Error(err))
		}
	}

	if err := s.notifier.UpdateStock(ctx, item.ProductExternalID, result.StoreID, stock); err != nil {
		util.NotificationFailuresTotal.WithLabelValues("inventory_service").Inc()
		s.logger.Error("Failed to notify inventory service",
			zap.Int64("order_id", order.ID),
			zap.Int64("product_id", item.ProductExternalID),
			zap.Int64("store_id", result.StoreID),
			zap.Float64("stock", stock),
			zap.Error(err))
		result.NotifyError = err.Error()
		return result
	}
	result.Notified = true
	return result
}
