package dto

import (
	"time"

	"safetalk.app/mediator/internal/brain"
	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/safety"
)

// AdvanceDialogRequest opens the dialog when Text is omitted.
type AdvanceDialogRequest struct {
	Text *string `json:"text,omitempty" binding:"omitempty,max=4000"`
}

type AdvanceDialogResponse struct {
	AssistantText string           `json:"assistant_text,omitempty"`
	PhaseComplete bool             `json:"phase_complete"`
	Escalated     bool             `json:"escalated"`
	Guidance      *safety.Guidance `json:"guidance,omitempty"`
	Exchanges     int              `json:"exchanges"`
}

func ToAdvanceDialogResponse(r *brain.AdvanceResult) *AdvanceDialogResponse {
	return &AdvanceDialogResponse{
		AssistantText: r.AssistantText,
		PhaseComplete: r.PhaseComplete,
		Escalated:     r.Escalated,
		Guidance:      r.Guidance,
		Exchanges:     r.Exchanges,
	}
}

type TurnResponse struct {
	Seq       int32         `json:"seq"`
	Speaker   model.Speaker `json:"speaker"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"created_at"`
}

type TranscriptResponse struct {
	QuestionID int64          `json:"question_id,string"`
	Role       model.Role     `json:"role"`
	Turns      []TurnResponse `json:"turns"`
}

func ToTranscriptResponse(questionID int64, role model.Role, l *model.ReflectionLog) *TranscriptResponse {
	resp := &TranscriptResponse{
		QuestionID: questionID,
		Role:       role,
		Turns:      []TurnResponse{},
	}
	if l == nil {
		return resp
	}
	for _, t := range l.Turns {
		resp.Turns = append(resp.Turns, TurnResponse{
			Seq:       t.Seq,
			Speaker:   t.Speaker,
			Text:      t.Text,
			CreatedAt: t.CreatedAt,
		})
	}
	return resp
}
