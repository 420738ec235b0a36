package api

import (
	"net/http"

	"picker-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) startPicking(c *gin.Context) {
	orderID, ok := pathID(c, "order_id")
	if !ok {
		return
	}

	result, err := h.svc.Picking.Start(c.Request.Context(), orderID, currentAgentID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "success",
		"message":          "Picking started",
		"order_id":         result.OrderID,
		"reference_number": result.ReferenceNumber,
		"picking_status":   result.PickingStatus,
	})
}

func (h *Handler) addItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.svc.Picking.AddItem(c.Request.Context(), &req, currentAgentID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "success",
		"message":          "Item added to picking",
		"order_id":         result.OrderID,
		"product_id":       result.ProductID,
		"picked_quantity":  result.PickedQuantity,
		"ordered_quantity": result.OrderedQuantity,
		"remaining":        result.Remaining,
	})
}

func (h *Handler) completePicking(c *gin.Context) {
	orderID, ok := pathID(c, "order_id")
	if !ok {
		return
	}

	result, err := h.svc.Picking.Complete(c.Request.Context(), orderID, currentAgentID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           result.Status,
		"message":          "Order packed",
		"order_id":         result.OrderID,
		"reference_number": result.ReferenceNumber,
		"crate_label":      result.CrateLabel,
		"manifest":         result.Manifest,
		"dispatch":         result.Dispatch,
	})
}

func (h *Handler) listActivities(c *gin.Context) {
	orderID, ok := pathID(c, "order_id")
	if !ok {
		return
	}

	log, err := h.svc.Orders.ListActivities(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, log)
}
