package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"picker-service/internal/broker"
	"picker-service/internal/models"
	"picker-service/internal/store"
	"picker-service/internal/util"
	apperrors "picker-service/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// quantityEpsilon absorbs float error when comparing picked and ordered
// quantities of weight-sold items
const quantityEpsilon = 1e-9

// DefaultPickMethod is recorded when an add-item request names no method
const DefaultPickMethod = "manual"

// PickingService drives the per-order picking state machine
type PickingService struct {
	uow       store.UnitOfWork
	packer    *Packer
	publisher EventPublisher
	logger    *zap.Logger
}

// NewPickingService creates a new picking service. publisher may be nil.
func NewPickingService(uow store.UnitOfWork, packer *Packer, publisher EventPublisher) *PickingService {
	return &PickingService{
		uow:       uow,
		packer:    packer,
		publisher: publisher,
		logger:    util.Component("picking"),
	}
}

// StartResult is returned by Start
type StartResult struct {
	OrderID         int64                `json:"order_id"`
	ReferenceNumber string               `json:"reference_number"`
	PickingStatus   models.PickingStatus `json:"picking_status"`
}

// AddItemRequest picks some quantity of one order line. ProductID is the
// upstream product id. Quantity defaults to 1.
type AddItemRequest struct {
	OrderID   int64    `json:"order_id" binding:"required"`
	ProductID int64    `json:"product_id" binding:"required"`
	Quantity  *float64 `json:"quantity"`
	Method    string   `json:"method"`
}

// AddItemResult is returned by AddItem
type AddItemResult struct {
	OrderID         int64   `json:"order_id"`
	ProductID       int64   `json:"product_id"`
	PickedQuantity  float64 `json:"picked_quantity"`
	OrderedQuantity float64 `json:"ordered_quantity"`
	Remaining       float64 `json:"remaining"`
}

// CompleteResult is returned by Complete
type CompleteResult struct {
	OrderID         int64           `json:"order_id"`
	ReferenceNumber string          `json:"reference_number"`
	Status          string          `json:"status"`
	CrateLabel      string          `json:"crate_label"`
	Manifest        models.Manifest `json:"manifest"`
	Dispatch        *DispatchReport `json:"dispatch"`
}

func (s *PickingService) reject(reason string, err error) error {
	util.PickingRejectionsTotal.WithLabelValues(reason).Inc()
	return err
}

// Start moves an order from NOT_STARTED to IN_PROGRESS
func (s *PickingService) Start(ctx context.Context, orderID int64, agentID *int64) (*StartResult, error) {
	ctx, span := util.StartSpan(ctx, "PickingService.Start", attribute.Int64("order.id", orderID))
	defer span.End()

	var order *models.Order
	err := s.uow.RunInTx(ctx, func(repo store.Repository) error {
		var err error
		order, err = repo.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.PickingStatus != models.PickingNotStarted {
			return s.reject("already_started", &apperrors.ErrInvalidStateTransition{
				From: string(order.PickingStatus),
				To:   string(models.PickingInProgress),
			})
		}
		if err := repo.UpdatePickingStatus(ctx, orderID, models.PickingInProgress); err != nil {
			return err
		}
		order.PickingStatus = models.PickingInProgress
		return repo.CreatePickingActivity(ctx, &models.PickingActivity{
			OrderID: orderID,
			Action:  models.ActionPickingStarted,
			AgentID: agentID,
		})
	})
	if err != nil {
		return nil, util.FailSpan(span, err)
	}

	util.PickingTransitionsTotal.WithLabelValues("start").Inc()
	s.logger.Info("Picking started",
		zap.Int64("order_id", orderID),
		zap.String("reference_number", order.ReferenceNumber))

	s.publish(ctx, &models.PickingEvent{
		BaseEvent:       broker.NewBaseEvent(models.EventTypePickingStarted),
		OrderID:         orderID,
		ReferenceNumber: order.ReferenceNumber,
		AgentID:         agentID,
	})

	return &StartResult{
		OrderID:         orderID,
		ReferenceNumber: order.ReferenceNumber,
		PickingStatus:   order.PickingStatus,
	}, nil
}

// AddItem adds a picked quantity to one line of an IN_PROGRESS order. A pick
// that would exceed the ordered quantity is rejected, never clamped.
func (s *PickingService) AddItem(ctx context.Context, req *AddItemRequest, agentID *int64) (*AddItemResult, error) {
	ctx, span := util.StartSpan(ctx, "PickingService.AddItem",
		attribute.Int64("order.id", req.OrderID),
		attribute.Int64("product.id", req.ProductID))
	defer span.End()

	quantity := 1.0
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if !(quantity > 0) || math.IsInf(quantity, 0) {
		return nil, s.reject("invalid_quantity", &apperrors.ErrValidation{
			Code:    apperrors.CodeInvalidQuantity,
			Message: fmt.Sprintf("quantity must be positive, got %v", quantity),
		})
	}
	method := req.Method
	if method == "" {
		method = DefaultPickMethod
	}

	var order *models.Order
	var line models.OrderItem
	err := s.uow.RunInTx(ctx, func(repo store.Repository) error {
		var err error
		order, err = repo.GetOrderForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if order.PickingStatus != models.PickingInProgress {
			return s.reject("not_in_progress", &apperrors.ErrInvalidStateTransition{
				From: string(order.PickingStatus),
				To:   string(models.ActionItemPicked),
			})
		}

		items, err := repo.ListOrderItems(ctx, req.OrderID)
		if err != nil {
			return err
		}
		found := false
		for _, item := range items {
			if item.ProductExternalID == req.ProductID {
				line, found = item, true
				break
			}
		}
		if !found {
			return s.reject("product_not_in_order", apperrors.NotFound("order item",
				fmt.Sprintf("product %d in order %d", req.ProductID, req.OrderID)))
		}

		picked := line.PickedQuantity + quantity
		if picked > line.OrderedQuantity+quantityEpsilon {
			return s.reject("quantity_exceeded", &apperrors.ErrValidation{
				Code: apperrors.CodeQuantityExceeded,
				Message: fmt.Sprintf("Picked quantity (%g) exceeds ordered quantity (%g)",
					picked, line.OrderedQuantity),
			})
		}
		if picked > line.OrderedQuantity {
			picked = line.OrderedQuantity
		}

		if err := repo.UpdatePickedQuantity(ctx, line.ID, picked); err != nil {
			return err
		}
		line.PickedQuantity = picked

		productID := req.ProductID
		return repo.CreatePickingActivity(ctx, &models.PickingActivity{
			OrderID:   req.OrderID,
			Action:    models.ActionItemPicked,
			ProductID: &productID,
			Quantity:  &quantity,
			Method:    &method,
			AgentID:   agentID,
			Details: models.MustJSON(map[string]interface{}{
				"product_id": req.ProductID,
				"method":     method,
				"quantity":   quantity,
			}),
		})
	})
	if err != nil {
		return nil, util.FailSpan(span, err)
	}

	util.PickingTransitionsTotal.WithLabelValues("add_item").Inc()
	util.ItemsPickedTotal.Add(quantity)
	s.logger.Info("Item picked",
		zap.Int64("order_id", req.OrderID),
		zap.Int64("product_id", req.ProductID),
		zap.Float64("quantity", quantity),
		zap.Float64("picked", line.PickedQuantity),
		zap.Float64("ordered", line.OrderedQuantity))

	s.publish(ctx, &models.PickingEvent{
		BaseEvent:       broker.NewBaseEvent(models.EventTypeItemPicked),
		OrderID:         req.OrderID,
		ReferenceNumber: order.ReferenceNumber,
		AgentID:         agentID,
		ProductID:       req.ProductID,
		Quantity:        quantity,
		Method:          method,
	})

	return &AddItemResult{
		OrderID:         req.OrderID,
		ProductID:       req.ProductID,
		PickedQuantity:  line.PickedQuantity,
		OrderedQuantity: line.OrderedQuantity,
		Remaining:       line.OrderedQuantity - line.PickedQuantity,
	}, nil
}

// Complete packs a fully picked IN_PROGRESS order: it creates the crate,
// marks the order PACKED/COMPLETED and logs the completion in one
// transaction, then dispatches downstream notifications best-effort.
func (s *PickingService) Complete(ctx context.Context, orderID int64, agentID *int64) (*CompleteResult, error) {
	ctx, span := util.StartSpan(ctx, "PickingService.Complete", attribute.Int64("order.id", orderID))
	defer span.End()

	var order *models.Order
	var items []models.OrderItem
	var crate *models.CrateLabel
	err := s.uow.RunInTx(ctx, func(repo store.Repository) error {
		var err error
		order, err = repo.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.PickingStatus != models.PickingInProgress {
			return s.reject("not_in_progress", &apperrors.ErrInvalidStateTransition{
				From: string(order.PickingStatus),
				To:   string(models.PickingCompleted),
			})
		}

		items, err = repo.ListOrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return s.reject("no_items", &apperrors.ErrValidation{
				Code:    apperrors.CodeNoValidItems,
				Message: "order has no items to pack",
			})
		}
		unpicked := 0
		for _, item := range items {
			if item.PickedQuantity < item.OrderedQuantity-quantityEpsilon {
				unpicked++
			}
		}
		if unpicked > 0 {
			return s.reject("incomplete", &apperrors.ErrIncompletePicking{Unpicked: unpicked})
		}

		crate, err = s.packer.CreateCrate(ctx, repo, order, items)
		if err != nil {
			return err
		}

		packedAt := time.Now()
		if err := repo.MarkOrderPacked(ctx, orderID, packedAt); err != nil {
			return err
		}
		order.Status = models.OrderStatusPacked
		order.PickingStatus = models.PickingCompleted
		order.PackedAt = &packedAt

		return repo.CreatePickingActivity(ctx, &models.PickingActivity{
			OrderID: orderID,
			Action:  models.ActionPickingCompleted,
			AgentID: agentID,
			Details: models.MustJSON(map[string]interface{}{
				"crate_label": crate.Label,
			}),
		})
	})
	if err != nil {
		return nil, util.FailSpan(span, err)
	}

	util.PickingTransitionsTotal.WithLabelValues("complete").Inc()
	util.OrdersPackedTotal.Inc()
	s.logger.Info("Order packed",
		zap.Int64("order_id", orderID),
		zap.String("reference_number", order.ReferenceNumber),
		zap.String("crate_label", crate.Label))

	report := s.packer.Dispatch(ctx, order, items, crate)

	s.publish(ctx, &models.PickingEvent{
		BaseEvent:       broker.NewBaseEvent(models.EventTypePickingCompleted),
		OrderID:         orderID,
		ReferenceNumber: order.ReferenceNumber,
		AgentID:         agentID,
		CrateLabel:      crate.Label,
		Manifest:        crate.Items,
	})

	return &CompleteResult{
		OrderID:         orderID,
		ReferenceNumber: order.ReferenceNumber,
		Status:          order.Status,
		CrateLabel:      crate.Label,
		Manifest:        crate.Items,
		Dispatch:        report,
	}, nil
}

func (s *PickingService) publish(ctx context.Context, event *models.PickingEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPickingEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish picking event",
			zap.String("event_type", event.EventType),
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
	}
}
