package api

import (
	"net/http"

	"picker-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) registerAgent(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	agent, err := h.svc.Agents.Register(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, agent)
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.Agents.Login(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.svc.Agents.Logout(c.Request.Context(), bearerToken(c)); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) listAgents(c *gin.Context) {
	limit, offset := page(c)
	agents, err := h.svc.Agents.ListAgents(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (h *Handler) getAgent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	agent, err := h.svc.Agents.GetAgent(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, agent)
}
