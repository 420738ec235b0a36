package service

import (
	"context"

	"picker-service/internal/models"
	"picker-service/internal/store"
	"picker-service/internal/util"

	"go.uber.org/zap"
)

// OrderService serves read-only views of orders and their picking history
type OrderService struct {
	uow    store.UnitOfWork
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(uow store.UnitOfWork) *OrderService {
	return &OrderService{
		uow:    uow,
		logger: util.Component("orders"),
	}
}

// OrderDetail is an order with its lines and crates
type OrderDetail struct {
	Order  *models.Order       `json:"order"`
	Items  []models.OrderItem  `json:"items"`
	Crates []models.CrateLabel `json:"crates"`
}

// ActivityLog is the picking history of an order
type ActivityLog struct {
	OrderID         int64                    `json:"order_id"`
	ReferenceNumber string                   `json:"reference_number"`
	Activities      []models.PickingActivity `json:"activities"`
}

// GetOrder retrieves an order with its items and crates
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.uow.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	items, err := s.uow.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	crates, err := s.uow.ListCrateLabels(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &OrderDetail{Order: order, Items: items, Crates: crates}, nil
}

// ListOrders lists orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	return s.uow.ListOrders(ctx, filter)
}

// ListItems lists the lines of an order
func (s *OrderService) ListItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	if _, err := s.uow.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.uow.ListOrderItems(ctx, orderID)
}

// ListActivities returns the activity log of an order in write order
func (s *OrderService) ListActivities(ctx context.Context, orderID int64) (*ActivityLog, error) {
	order, err := s.uow.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	activities, err := s.uow.ListPickingActivities(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &ActivityLog{
		OrderID:         orderID,
		ReferenceNumber: order.ReferenceNumber,
		Activities:      activities,
	}, nil
}

// ListCrates returns the crates of an order
func (s *OrderService) ListCrates(ctx context.Context, orderID int64) ([]models.CrateLabel, error) {
	if _, err := s.uow.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.uow.ListCrateLabels(ctx, orderID)
}
