package service

import (
	"context"
	"fmt"

	"picker-service/internal/models"
	"picker-service/internal/store"
	"picker-service/internal/util"
	apperrors "picker-service/pkg/errors"

	"go.uber.org/zap"
)

// StockCache mirrors authoritative stock figures for fast reads
type StockCache interface {
	SetStock(ctx context.Context, productExternalID, storeID int64, stock float64) error
	GetStock(ctx context.Context, productExternalID, storeID int64) (stock float64, found bool, err error)
}

// Where a StockLevel was answered from
const (
	StockSourceCache = "cache"
	StockSourceStore = "store"
)

// StockLevel is the current stock of an upstream product at a store
type StockLevel struct {
	ProductID int64   `json:"product_id"`
	StoreID   int64   `json:"store_id"`
	Stock     float64 `json:"stock"`
	Source    string  `json:"source"`
}

// CatalogService owns product, inventory and customer upserts
type CatalogService struct {
	uow    store.UnitOfWork
	stock  StockCache
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service. stock may be nil.
func NewCatalogService(uow store.UnitOfWork, stock StockCache) *CatalogService {
	return &CatalogService{
		uow:    uow,
		stock:  stock,
		logger: util.Component("catalog"),
	}
}

// CatalogEntryResult reports one entry of a catalog webhook
type CatalogEntryResult struct {
	ID         int64    `json:"id,omitempty"`
	ProductID  int64    `json:"product_id,omitempty"`
	StoreID    int64    `json:"store_id,omitempty"`
	CustomerID string   `json:"customer_id,omitempty"`
	Stock      *float64 `json:"stock,omitempty"`
	Status     string   `json:"status"`
	Code       string   `json:"code,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// CatalogBatchResult is the response to a catalog webhook
type CatalogBatchResult struct {
	Status    string               `json:"status"`
	Processed int                  `json:"processed"`
	Results   []CatalogEntryResult `json:"results"`
}

func newCatalogBatch(results []CatalogEntryResult) *CatalogBatchResult {
	return &CatalogBatchResult{Status: "ok", Processed: len(results), Results: results}
}

func (s *CatalogService) failedEntry(entity string, entry CatalogEntryResult, err error) CatalogEntryResult {
	entry.Status = ResultFailed
	entry.Code, entry.Error = failure(err)
	if entry.Code == CodeInternal {
		s.logger.Error("Catalog entry failed",
			zap.String("entity", entity),
			zap.Int64("product_id", entry.ProductID),
			zap.String("customer_id", entry.CustomerID),
			zap.Error(err))
	}
	util.CatalogUpsertsTotal.WithLabelValues(entity, "failed").Inc()
	return entry
}

// resolveProduct returns the product for an order line, creating it (and its
// per-store inventory) only when no product with that upstream id exists yet.
func (s *CatalogService) resolveProduct(ctx context.Context, rec *productRecord) (*models.Product, error) {
	if rec.externalID() > 0 {
		existing, err := s.uow.FindProductByExternalID(ctx, rec.externalID())
		if err != nil {
			return nil, fmt.Errorf("failed to look up product: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}
	return s.upsertProduct(ctx, rec)
}

// upsertProduct full-replaces the product, then upserts each store entry.
// Inventory failures are logged and do not fail the product.
func (s *CatalogService) upsertProduct(ctx context.Context, rec *productRecord) (*models.Product, error) {
	product, err := rec.model()
	if err != nil {
		return nil, err
	}
	if err := s.uow.UpsertProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to upsert product %d: %w", product.ProductID, err)
	}

	for i := range rec.StoreSpecificData {
		entry := &rec.StoreSpecificData[i]
		if entry.storeID() <= 0 {
			s.logger.Warn("Skipping store entry without store id", zap.Int64("product_id", product.ProductID))
			continue
		}
		if _, err := s.upsertInventory(ctx, product, entry.model(product.ID)); err != nil {
			s.logger.Warn("Failed to upsert inventory for product",
				zap.Int64("product_id", product.ProductID),
				zap.Int64("store_id", entry.storeID()),
				zap.Error(err))
		}
	}

	util.CatalogUpsertsTotal.WithLabelValues("product", "success").Inc()
	return product, nil
}

func (s *CatalogService) upsertInventory(ctx context.Context, product *models.Product, inv *models.Inventory) (*models.Inventory, error) {
	if err := s.uow.UpsertInventory(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to upsert inventory: %w", err)
	}
	s.mirrorStock(ctx, product.ProductID, inv.StoreID, inv.Stock)
	util.CatalogUpsertsTotal.WithLabelValues("inventory", "success").Inc()
	return inv, nil
}

func (s *CatalogService) mirrorStock(ctx context.Context, productExternalID, storeID int64, stock float64) {
	if s.stock == nil {
		return
	}
	if err := s.stock.SetStock(ctx, productExternalID, storeID, stock); err != nil {
		s.logger.Warn("Failed to mirror stock",
			zap.Int64("product_id", productExternalID),
			zap.Int64("store_id", storeID),
			zap.Error(err))
	}
}

// ProductWebhook upserts each product of the body. Accepts {product: ...},
// a list, or a bare product object.
func (s *CatalogService) ProductWebhook(ctx context.Context, body []byte) (*CatalogBatchResult, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ProductWebhook")
	defer span.End()

	entries, err := catalogEntries(body, "product")
	if err != nil {
		return nil, err
	}

	results := make([]CatalogEntryResult, 0, len(entries))
	for _, raw := range entries {
		rec, err := decodeProductRecord(raw)
		if err != nil {
			results = append(results, s.failedEntry("product", CatalogEntryResult{}, err))
			continue
		}
		entry := CatalogEntryResult{ProductID: rec.externalID()}
		product, err := s.upsertProduct(ctx, rec)
		if err != nil {
			results = append(results, s.failedEntry("product", entry, err))
			continue
		}
		entry.ID = product.ID
		entry.Status = ResultSuccess
		results = append(results, entry)
	}
	return newCatalogBatch(results), nil
}

// InventoryWebhook upserts inventory rows keyed by (upstream product id,
// store id). The product must already exist.
func (s *CatalogService) InventoryWebhook(ctx context.Context, body []byte) (*CatalogBatchResult, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.InventoryWebhook")
	defer span.End()

	entries, err := catalogEntries(body, "inventory")
	if err != nil {
		return nil, err
	}

	results := make([]CatalogEntryResult, 0, len(entries))
	for _, raw := range entries {
		var rec storeRecord
		if err := decodeObject(raw, &rec); err != nil {
			results = append(results, s.failedEntry("inventory", CatalogEntryResult{}, invalidPayload("inventory entry is not an object")))
			continue
		}
		entry := CatalogEntryResult{ProductID: rec.productExternalID(), StoreID: rec.storeID()}
		inv, err := s.UpsertInventory(ctx, &rec)
		if err != nil {
			results = append(results, s.failedEntry("inventory", entry, err))
			continue
		}
		entry.ID = inv.ID
		entry.Stock = &inv.Stock
		entry.Status = ResultSuccess
		results = append(results, entry)
	}
	return newCatalogBatch(results), nil
}

// UpsertInventory resolves the upstream product id and upserts the row. An
// unknown product is NOT_FOUND; no placeholder product is created.
func (s *CatalogService) UpsertInventory(ctx context.Context, rec *storeRecord) (*models.Inventory, error) {
	fields := map[string]string{}
	if rec.productExternalID() <= 0 {
		fields["product_id"] = "required"
	}
	if rec.storeID() <= 0 {
		fields["store_id"] = "required"
	}
	if len(fields) > 0 {
		return nil, &apperrors.ErrValidation{
			Code:    apperrors.CodeMissingField,
			Message: "inventory entry is missing required fields",
			Fields:  fields,
		}
	}

	product, err := s.uow.FindProductByExternalID(ctx, rec.productExternalID())
	if err != nil {
		return nil, fmt.Errorf("failed to look up product: %w", err)
	}
	if product == nil {
		return nil, apperrors.NotFound("product", rec.productExternalID())
	}
	return s.upsertInventory(ctx, product, rec.model(product.ID))
}

// CustomerWebhook upserts customers keyed by upstream customer id
func (s *CatalogService) CustomerWebhook(ctx context.Context, body []byte) (*CatalogBatchResult, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CustomerWebhook")
	defer span.End()

	entries, err := catalogEntries(body, "customer")
	if err != nil {
		return nil, err
	}

	results := make([]CatalogEntryResult, 0, len(entries))
	for _, raw := range entries {
		var rec customerRecord
		if err := decodeObject(raw, &rec); err != nil {
			results = append(results, s.failedEntry("customer", CatalogEntryResult{}, invalidPayload("customer entry is not an object")))
			continue
		}
		customer, err := rec.model()
		if err != nil {
			results = append(results, s.failedEntry("customer", CatalogEntryResult{}, err))
			continue
		}
		entry := CatalogEntryResult{CustomerID: customer.CustomerID}
		if err := s.uow.UpsertCustomer(ctx, customer); err != nil {
			results = append(results, s.failedEntry("customer", entry, err))
			continue
		}
		util.CatalogUpsertsTotal.WithLabelValues("customer", "success").Inc()
		entry.ID = customer.ID
		entry.Status = ResultSuccess
		results = append(results, entry)
	}
	return newCatalogBatch(results), nil
}

// GetProduct retrieves a product by internal id
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.uow.GetProduct(ctx, id)
}

// ListProducts pages through the catalog
func (s *CatalogService) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	return s.uow.ListProducts(ctx, limit, offset)
}

// GetInventory returns stock for an upstream product id at a store
func (s *CatalogService) GetInventory(ctx context.Context, productExternalID, storeID int64) (*models.Inventory, error) {
	product, err := s.uow.FindProductByExternalID(ctx, productExternalID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperrors.NotFound("product", productExternalID)
	}
	inv, err := s.uow.FindInventory(ctx, product.ID, storeID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperrors.NotFound("inventory", fmt.Sprintf("%d/%d", productExternalID, storeID))
	}
	return inv, nil
}

// GetStock answers from the stock mirror when it holds the figure and falls
// back to the database otherwise, refilling the mirror on the way out. A
// failing mirror is logged and bypassed.
func (s *CatalogService) GetStock(ctx context.Context, productExternalID, storeID int64) (*StockLevel, error) {
	if s.stock != nil {
		stock, found, err := s.stock.GetStock(ctx, productExternalID, storeID)
		switch {
		case err != nil:
			s.logger.Warn("Stock mirror read failed, falling back to database",
				zap.Int64("product_id", productExternalID),
				zap.Int64("store_id", storeID),
				zap.Error(err))
		case found:
			util.StockReadsTotal.WithLabelValues(StockSourceCache).Inc()
			return &StockLevel{ProductID: productExternalID, StoreID: storeID, Stock: stock, Source: StockSourceCache}, nil
		}
	}

	inv, err := s.GetInventory(ctx, productExternalID, storeID)
	if err != nil {
		return nil, err
	}
	s.mirrorStock(ctx, productExternalID, storeID, inv.Stock)

	util.StockReadsTotal.WithLabelValues(StockSourceStore).Inc()
	return &StockLevel{ProductID: productExternalID, StoreID: storeID, Stock: inv.Stock, Source: StockSourceStore}, nil
}

// DeleteProduct removes a product and its inventory. Products still
// referenced by order lines cannot be deleted.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	s.logger.Info("Deleting product", zap.Int64("id", id))
	return s.uow.DeleteProduct(ctx, id)
}

// DeleteCustomer removes a customer
func (s *CatalogService) DeleteCustomer(ctx context.Context, id int64) error {
	s.logger.Info("Deleting customer", zap.Int64("id", id))
	return s.uow.DeleteCustomer(ctx, id)
}
