package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"safetalk.app/mediator/internal/http/dto"
)

type SafetyHandler struct {
	orchestrator Orchestrator
}

func NewSafetyHandler(orchestrator Orchestrator) *SafetyHandler {
	return &SafetyHandler{orchestrator: orchestrator}
}

// Check classifies text without storing it or creating any record.
func (h *SafetyHandler) Check(c *gin.Context) {
	var req dto.SafetyCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(c.Request.Context(), "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	classification, guidance := h.orchestrator.CheckText(req.Text)
	c.JSON(http.StatusOK, dto.SafetyCheckResponse{
		Classification: classification,
		Guidance:       guidance,
	})
}
