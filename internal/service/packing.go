package service

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"picker-service/internal/models"
	"picker-service/internal/store"
	"picker-service/internal/util"
	apperrors "picker-service/pkg/errors"

	"go.uber.org/zap"
)

// CratePrefix starts every crate label
const CratePrefix = "CRATE-"

// CrateLabelFor returns the crate label of an order reference number
func CrateLabelFor(referenceNumber string) string {
	return CratePrefix + referenceNumber
}

// BuildManifest maps each upstream product id to its picked quantity,
// truncated to a whole number
func BuildManifest(items []models.OrderItem) models.Manifest {
	manifest := make(models.Manifest, len(items))
	for _, item := range items {
		key := strconv.FormatInt(item.ProductExternalID, 10)
		manifest[key] += int(math.Trunc(item.PickedQuantity))
	}
	return manifest
}

// PackageInfo describes one crate for the order service
type PackageInfo struct {
	Weight float64         `json:"weight"`
	Items  models.Manifest `json:"items"`
}

// PackageMetadata is the packageMetaData block sent to the order service
type PackageMetadata struct {
	Packages map[string]PackageInfo `json:"packages"`
}

// NewPackageMetadata builds the metadata for a single crate. Weight is
// reported as zero: crates are not weighed.
func NewPackageMetadata(crate *models.CrateLabel) PackageMetadata {
	return PackageMetadata{
		Packages: map[string]PackageInfo{
			crate.Label: {Weight: 0, Items: crate.Items},
		},
	}
}

// OrderNotifier pushes order status changes to the order service
type OrderNotifier interface {
	UpdateStatus(ctx context.Context, referenceNumber, status string, crates []string, meta PackageMetadata) error
}

// DispatchReport records what happened downstream after a pack
type DispatchReport struct {
	OrderNotified bool                `json:"order_notified"`
	OrderError    string              `json:"order_error,omitempty"`
	Inventory     []StockUpdateResult `json:"inventory"`
}

// Packer creates crates and dispatches the packed order downstream
type Packer struct {
	orders    OrderNotifier
	inventory *InventorySync
	logger    *zap.Logger
}

// NewPacker creates a new packer
func NewPacker(orders OrderNotifier, inventory *InventorySync) *Packer {
	return &Packer{
		orders:    orders,
		inventory: inventory,
		logger:    util.Component("packer"),
	}
}

// CreateCrate persists the one crate of an order inside the caller's
// transaction. A second crate for the same order is a conflict.
func (p *Packer) CreateCrate(ctx context.Context, repo store.Repository, order *models.Order, items []models.OrderItem) (*models.CrateLabel, error) {
	label := CrateLabelFor(order.ReferenceNumber)

	existing, err := repo.FindCrateLabel(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("failed to look up crate label: %w", err)
	}
	if existing != nil {
		return nil, &apperrors.ErrConflict{Message: fmt.Sprintf("crate %s already exists", label)}
	}

	crate := &models.CrateLabel{
		OrderID: order.ID,
		Label:   label,
		Items:   BuildManifest(items),
	}
	if err := repo.CreateCrateLabel(ctx, crate); err != nil {
		return nil, fmt.Errorf("failed to create crate label: %w", err)
	}
	return crate, nil
}

// Dispatch notifies the order service and syncs inventory for a packed
// order. Failures are logged and reported; local state is never touched.
func (p *Packer) Dispatch(ctx context.Context, order *models.Order, items []models.OrderItem, crate *models.CrateLabel) *DispatchReport {
	ctx, span := util.StartSpan(ctx, "Packer.Dispatch")
	defer span.End()

	report := &DispatchReport{}

	err := p.orders.UpdateStatus(ctx, order.ReferenceNumber, models.OrderStatusPacked,
		[]string{crate.Label}, NewPackageMetadata(crate))
	if err != nil {
		util.NotificationFailuresTotal.WithLabelValues("order_service").Inc()
		p.logger.Error("Failed to notify order service",
			zap.Int64("order_id", order.ID),
			zap.String("reference_number", order.ReferenceNumber),
			zap.Error(err))
		report.OrderError = err.Error()
	} else {
		report.OrderNotified = true
	}

	report.Inventory = p.inventory.Apply(ctx, order, items)
	return report
}
