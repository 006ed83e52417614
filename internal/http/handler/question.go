package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"safetalk.app/mediator/common/logger"
	"safetalk.app/mediator/internal/brain"
	"safetalk.app/mediator/internal/http/dto"
	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/safety"
)

// Orchestrator is the slice of brain.Orchestrator the HTTP layer calls.
type Orchestrator interface {
	SubmitQuestion(ctx context.Context, askerID int64, text string) (*brain.SubmitResult, error)
	AdvanceDialog(ctx context.Context, req brain.AdvanceRequest) (*brain.AdvanceResult, error)
	GetStatus(ctx context.Context, questionID, userID int64) (*brain.StatusView, error)
	GetInsight(ctx context.Context, questionID, userID int64) (*model.Insight, error)
	GetTranscript(ctx context.Context, questionID, userID int64, role model.Role) (*model.ReflectionLog, error)
	CompletePartnerPhase(ctx context.Context, questionID int64, userID *int64) (*model.Insight, error)
	DeclineQuestion(ctx context.Context, questionID, userID int64) (*model.Question, error)
	LinkPartners(ctx context.Context, userID int64, inviteCode string) (*model.User, error)
	CheckText(text string) (safety.Classification, *safety.Guidance)
}

type QuestionHandler struct {
	orchestrator Orchestrator
}

func NewQuestionHandler(orchestrator Orchestrator) *QuestionHandler {
	return &QuestionHandler{orchestrator: orchestrator}
}

func (h *QuestionHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.SubmitQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.orchestrator.SubmitQuestion(ctx, userID, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}

	if res.Escalated {
		c.JSON(http.StatusOK, dto.ToSubmitQuestionResponse(res))
		return
	}
	c.JSON(http.StatusCreated, dto.ToSubmitQuestionResponse(res))
}

func (h *QuestionHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := callerID(c)
	if !ok {
		return
	}
	qid, ok := questionID(c)
	if !ok {
		return
	}

	view, err := h.orchestrator.GetStatus(ctx, qid, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToStatusResponse(view))
}

func (h *QuestionHandler) Insight(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := callerID(c)
	if !ok {
		return
	}
	qid, ok := questionID(c)
	if !ok {
		return
	}

	in, err := h.orchestrator.GetInsight(ctx, qid, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToInsightResponse(in))
}

func (h *QuestionHandler) Advance(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := callerID(c)
	if !ok {
		return
	}
	qid, ok := questionID(c)
	if !ok {
		return
	}
	role := model.Role(c.Param("role"))
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be asker or partner"})
		return
	}

	var req dto.AdvanceDialogRequest
	// An empty body opens the dialog.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.orchestrator.AdvanceDialog(ctx, brain.AdvanceRequest{
		QuestionID: qid,
		UserID:     userID,
		Role:       role,
		Text:       req.Text,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToAdvanceDialogResponse(res))
}

func (h *QuestionHandler) Transcript(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := callerID(c)
	if !ok {
		return
	}
	qid, ok := questionID(c)
	if !ok {
		return
	}
	role := model.Role(c.Param("role"))
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be asker or partner"})
		return
	}

	log, err := h.orchestrator.GetTranscript(ctx, qid, userID, role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToTranscriptResponse(qid, role, log))
}

// CompletePartner is the partner's explicit "I'm done" signal.
func (h *QuestionHandler) CompletePartner(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := callerID(c)
	if !ok {
		return
	}
	qid, ok := questionID(c)
	if !ok {
		return
	}

	in, err := h.orchestrator.CompletePartnerPhase(ctx, qid, logger.Ptr(userID))
	if errors.Is(err, brain.ErrFlagged) {
		// The flag won the race; answer with guidance rather than a conflict.
		view, serr := h.orchestrator.GetStatus(ctx, qid, userID)
		if serr == nil && view.Guidance != nil {
			c.JSON(http.StatusOK, dto.CompletePartnerResponse{Guidance: view.Guidance})
			return
		}
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CompletePartnerResponse{Insight: dto.ToInsightResponse(in)})
}

func (h *QuestionHandler) Decline(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := callerID(c)
	if !ok {
		return
	}
	qid, ok := questionID(c)
	if !ok {
		return
	}

	q, err := h.orchestrator.DeclineQuestion(ctx, qid, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToQuestionResponse(q))
}
