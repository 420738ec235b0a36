package api

import (
	"net/http"
	"strings"

	"picker-service/internal/models"
	apperrors "picker-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

const agentKey = "agent"

// authMiddleware requires a valid bearer token and stores the agent
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		agent, err := h.svc.Agents.Authenticate(c.Request.Context(), bearerToken(c))
		if err != nil {
			h.respondError(c, err)
			c.Abort()
			return
		}
		c.Set(agentKey, agent)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// currentAgentID returns the authenticated agent's id, if any
func currentAgentID(c *gin.Context) *int64 {
	agent, ok := c.Get(agentKey)
	if !ok {
		return nil
	}
	a, ok := agent.(*models.Agent)
	if !ok {
		return nil
	}
	id := a.ID
	return &id
}

func (h *Handler) currentAgent(c *gin.Context) {
	agent, ok := c.Get(agentKey)
	if !ok {
		h.respondError(c, &apperrors.ErrUnauthorized{})
		return
	}
	c.JSON(http.StatusOK, agent)
}
