package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listProducts(c *gin.Context) {
	limit, offset := page(c)
	products, err := h.svc.Catalog.ListProducts(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	product, err := h.svc.Catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) getInventory(c *gin.Context) {
	productID, ok := pathID(c, "product_id")
	if !ok {
		return
	}
	storeID, ok := pathID(c, "store_id")
	if !ok {
		return
	}

	inv, err := h.svc.Catalog.GetInventory(c.Request.Context(), productID, storeID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

func (h *Handler) getStock(c *gin.Context) {
	productID, ok := pathID(c, "product_id")
	if !ok {
		return
	}
	storeID, ok := pathID(c, "store_id")
	if !ok {
		return
	}

	level, err := h.svc.Catalog.GetStock(c.Request.Context(), productID, storeID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, level)
}

func (h *Handler) deleteCustomer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Catalog.DeleteCustomer(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
