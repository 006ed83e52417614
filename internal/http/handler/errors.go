package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"safetalk.app/mediator/common/id"
	"safetalk.app/mediator/internal/brain"
	"safetalk.app/mediator/internal/http/middleware"
)

// writeError maps orchestrator errors onto status codes. Retryable faults are
// reported as 503 with retryable=true so clients resend the same input.
func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, brain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, brain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant in this role"})
	case errors.Is(err, brain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, brain.ErrNoPartner), errors.Is(err, brain.ErrAlreadyLinked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case brain.KindOf(err) == brain.KindInvariant:
		slog.InfoContext(ctx, "request rejected by question state", "error", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": brain.KindInvariant})
	case brain.IsRetryable(err):
		slog.WarnContext(ctx, "retryable failure", "error", err, "kind", brain.KindOf(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "temporarily unavailable, retry with the same input",
			"kind":      brain.KindOf(err),
			"retryable": true,
		})
	default:
		slog.ErrorContext(ctx, "request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func questionID(c *gin.Context) (int64, bool) {
	qid, err := id.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return 0, false
	}
	return qid, true
}

func callerID(c *gin.Context) (int64, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + middleware.UserIDHeader})
		return 0, false
	}
	return userID, true
}
