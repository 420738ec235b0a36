package api

import (
	"errors"
	"net/http"

	"picker-service/internal/service"
	apperrors "picker-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

// receiveOrder handles the order-service webhook. The batch answers 200 even
// when single orders fail; only an unacceptable envelope is a 400.
func (h *Handler) receiveOrder(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.svc.Ingestion.Ingest(c.Request.Context(), body)
	if err != nil {
		h.respondWebhookError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// respondWebhookError answers in the envelope style the order service expects
func (h *Handler) respondWebhookError(c *gin.Context, err error) {
	var validationErr *apperrors.ErrValidation
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"status":  validationErr.Code,
			"message": validationErr.Error(),
		})
		return
	}
	h.respondError(c, err)
}

type catalogWebhook func(*gin.Context, []byte) (*service.CatalogBatchResult, error)

func (h *Handler) catalogWebhook(c *gin.Context, fn catalogWebhook) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := fn(c, body)
	if err != nil {
		h.respondWebhookError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) productWebhook(c *gin.Context) {
	h.catalogWebhook(c, func(c *gin.Context, body []byte) (*service.CatalogBatchResult, error) {
		return h.svc.Catalog.ProductWebhook(c.Request.Context(), body)
	})
}

func (h *Handler) inventoryWebhook(c *gin.Context) {
	h.catalogWebhook(c, func(c *gin.Context, body []byte) (*service.CatalogBatchResult, error) {
		return h.svc.Catalog.InventoryWebhook(c.Request.Context(), body)
	})
}

func (h *Handler) customerWebhook(c *gin.Context) {
	h.catalogWebhook(c, func(c *gin.Context, body []byte) (*service.CatalogBatchResult, error) {
		return h.svc.Catalog.CustomerWebhook(c.Request.Context(), body)
	})
}
