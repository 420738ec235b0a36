package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"picker-service/internal/service"
	"picker-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups what the handlers call into
type Services struct {
	Ingestion *service.IngestionService
	Catalog   *service.CatalogService
	Picking   *service.PickingService
	Orders    *service.OrderService
	Agents    *service.AgentService
}

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	checks map[string]Pinger
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler. checks are probed by /ready.
func NewHandler(svc Services, checks map[string]Pinger) *Handler {
	return &Handler{
		svc:    svc,
		checks: checks,
		logger: util.Component("http"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/packer-order/create", h.receiveOrder)

	webhooks := router.Group("/webhook")
	{
		webhooks.POST("/product", h.productWebhook)
		webhooks.POST("/inventory", h.inventoryWebhook)
		webhooks.POST("/customer", h.customerWebhook)
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/agents/register", h.registerAgent)
		v1.POST("/agents/login", h.login)
	}

	authed := v1.Group("")
	authed.Use(h.authMiddleware())
	{
		authed.POST("/agents/logout", h.logout)
		authed.GET("/agents/me", h.currentAgent)
		authed.GET("/agents", h.listAgents)
		authed.GET("/agents/:id", h.getAgent)

		authed.GET("/orders", h.listOrders)
		authed.GET("/orders/:id", h.getOrder)
		authed.GET("/orders/:id/items", h.listOrderItems)
		authed.GET("/orders/:id/crates", h.listCrates)

		authed.GET("/products", h.listProducts)
		authed.GET("/products/:id", h.getProduct)
		authed.DELETE("/products/:id", h.deleteProduct)
		authed.GET("/inventory/:product_id/:store_id", h.getInventory)
		authed.GET("/inventory/:product_id/:store_id/stock", h.getStock)
		authed.DELETE("/customers/:id", h.deleteCustomer)

		authed.POST("/picking/start/:order_id", h.startPicking)
		authed.POST("/picking/add-item", h.addItem)
		authed.POST("/picking/complete/:order_id", h.completePicking)
		authed.GET("/picking/:order_id/activities", h.listActivities)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			failed[name] = "unavailable"
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// pathID parses a positive integer path parameter
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
		})
		return 0, false
	}
	return id, true
}

// page reads limit/offset query parameters
func page(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
