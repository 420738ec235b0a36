package api

import (
	"net/http"

	"picker-service/internal/store"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listOrders(c *gin.Context) {
	limit, offset := page(c)
	orders, err := h.svc.Orders.ListOrders(c.Request.Context(), store.OrderFilter{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	detail, err := h.svc.Orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) listOrderItems(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	items, err := h.svc.Orders.ListItems(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "items": items})
}

func (h *Handler) listCrates(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	crates, err := h.svc.Orders.ListCrates(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "crates": crates})
}
