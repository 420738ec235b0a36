package api

import (
	"errors"
	"net/http"

	apperrors "picker-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps domain errors onto HTTP statuses. Anything unrecognised
// is logged and answered with a generic 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	var validationErr *apperrors.ErrValidation
	var incompleteErr *apperrors.ErrIncompletePicking
	var transitionErr *apperrors.ErrInvalidStateTransition
	var notFoundErr *apperrors.ErrNotFound
	var conflictErr *apperrors.ErrConflict
	var unauthorizedErr *apperrors.ErrUnauthorized

	switch {
	case errors.As(err, &validationErr):
		body := gin.H{"error": validationErr.Error(), "code": validationErr.Code}
		if len(validationErr.Fields) > 0 {
			body["fields"] = validationErr.Fields
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &incompleteErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    incompleteErr.Error(),
			"code":     "INCOMPLETE_PICKING",
			"unpicked": incompleteErr.Unpicked,
		})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{
			"error": transitionErr.Error(),
			"code":  "INVALID_STATE_TRANSITION",
			"from":  transitionErr.From,
			"to":    transitionErr.To,
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Error()})
	case errors.As(err, &unauthorizedErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": unauthorizedErr.Error()})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// badRequest answers a body that failed to bind
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}
