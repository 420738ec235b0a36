package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"picker-service/internal/util"

	"go.uber.org/zap"
)

const defaultUpstreamTimeout = 30 * time.Second

// UpstreamConfig configures the order and inventory service clients
type UpstreamConfig struct {
	BaseURL        string
	UserID         int64
	OrganizationID int64
	Timeout        time.Duration
}

func (c UpstreamConfig) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}
	return &http.Client{Timeout: timeout}
}

// UpstreamError is a non-2xx answer from an upstream service
type UpstreamError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func sendJSON(ctx context.Context, client *http.Client, method, target string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UpstreamError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return nil
}

// OrderServiceClient implements OrderNotifier over HTTP
type OrderServiceClient struct {
	cfg        UpstreamConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOrderServiceClient creates a new order service client
func NewOrderServiceClient(cfg UpstreamConfig) *OrderServiceClient {
	return &OrderServiceClient{
		cfg:        cfg,
		httpClient: cfg.httpClient(),
		logger:     util.Component("order-service-client"),
	}
}

type orderStatusUpdate struct {
	OrganizationID  int64           `json:"organizationId"`
	User            string          `json:"user"`
	Status          string          `json:"status"`
	Details         string          `json:"details"`
	PackageMetaData PackageMetadata `json:"packageMetaData"`
}

// UpdateStatus sends PATCH /order-service/order/{reference}. The user and
// details fields are JSON documents encoded as strings.
func (c *OrderServiceClient) UpdateStatus(ctx context.Context, referenceNumber, status string, crates []string, meta PackageMetadata) error {
	ctx, span := util.StartSpan(ctx, "OrderServiceClient.UpdateStatus")
	defer span.End()

	if crates == nil {
		crates = []string{}
	}
	user, err := json.Marshal(map[string]int64{"id": c.cfg.UserID})
	if err != nil {
		return err
	}
	details, err := json.Marshal(map[string][]string{"crates": crates})
	if err != nil {
		return err
	}

	target := fmt.Sprintf("%s/order-service/order/%s", c.cfg.BaseURL, url.PathEscape(referenceNumber))
	err = sendJSON(ctx, c.httpClient, http.MethodPatch, target, orderStatusUpdate{
		OrganizationID:  c.cfg.OrganizationID,
		User:            string(user),
		Status:          status,
		Details:         string(details),
		PackageMetaData: meta,
	})
	if err != nil {
		return err
	}

	c.logger.Info("Order service updated",
		zap.String("reference_number", referenceNumber),
		zap.String("status", status))
	return nil
}

// InventoryServiceClient implements InventoryNotifier over HTTP
type InventoryServiceClient struct {
	cfg        UpstreamConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewInventoryServiceClient creates a new inventory service client
func NewInventoryServiceClient(cfg UpstreamConfig) *InventoryServiceClient {
	return &InventoryServiceClient{
		cfg:        cfg,
		httpClient: cfg.httpClient(),
		logger:     util.Component("inventory-service-client"),
	}
}

type stockUpdate struct {
	OrganizationID int64   `json:"organizationId"`
	ProductID      int64   `json:"productId"`
	StoreID        int64   `json:"storeId"`
	Stock          float64 `json:"stock"`
}

// UpdateStock sends POST /inventory-service/item with the new stock level
func (c *InventoryServiceClient) UpdateStock(ctx context.Context, productExternalID, storeID int64, stock float64) error {
	ctx, span := util.StartSpan(ctx, "InventoryServiceClient.UpdateStock")
	defer span.End()

	target := c.cfg.BaseURL + "/inventory-service/item"
	err := sendJSON(ctx, c.httpClient, http.MethodPost, target, stockUpdate{
		OrganizationID: c.cfg.OrganizationID,
		ProductID:      productExternalID,
		StoreID:        storeID,
		Stock:          stock,
	})
	if err != nil {
		return err
	}

	c.logger.Debug("Inventory service updated",
		zap.Int64("product_id", productExternalID),
		zap.Int64("store_id", storeID),
		zap.Float64("stock", stock))
	return nil
}
