package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"safetalk.app/mediator/internal/http/dto"
)

type PartnerHandler struct {
	orchestrator Orchestrator
}

func NewPartnerHandler(orchestrator Orchestrator) *PartnerHandler {
	return &PartnerHandler{orchestrator: orchestrator}
}

func (h *PartnerHandler) Link(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.LinkPartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	partner, err := h.orchestrator.LinkPartners(ctx, userID, req.InviteCode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToPartnerResponse(partner))
}
