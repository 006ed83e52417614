package dto

import (
	"time"

	"safetalk.app/mediator/internal/brain"
	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/safety"
)

type SubmitQuestionRequest struct {
	Text string `json:"text" binding:"required,min=1,max=2000"`
}

type QuestionResponse struct {
	ID              int64                `json:"id,string"`
	AskerID         int64                `json:"asker_id,string"`
	PartnerID       int64                `json:"partner_id,string"`
	Text            string               `json:"text"`
	Status          model.QuestionStatus `json:"status"`
	RedFlagDetected bool                 `json:"red_flag_detected"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func ToQuestionResponse(q *model.Question) *QuestionResponse {
	return &QuestionResponse{
		ID:              q.ID,
		AskerID:         q.AskerID,
		PartnerID:       q.PartnerID,
		Text:            q.Text,
		Status:          q.Status,
		RedFlagDetected: q.RedFlagDetected,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
}

type SubmitQuestionResponse struct {
	Question  *QuestionResponse `json:"question,omitempty"`
	Escalated bool              `json:"escalated"`
	Guidance  *safety.Guidance  `json:"guidance,omitempty"`
}

func ToSubmitQuestionResponse(r *brain.SubmitResult) *SubmitQuestionResponse {
	resp := &SubmitQuestionResponse{
		Escalated: r.Escalated,
		Guidance:  r.Guidance,
	}
	if r.Question != nil {
		resp.Question = ToQuestionResponse(r.Question)
	}
	return resp
}

type StatusResponse struct {
	QuestionID       int64                `json:"question_id,string"`
	Status           model.QuestionStatus `json:"status"`
	RedFlagDetected  bool                 `json:"red_flag_detected"`
	AskerExchanges   int                  `json:"asker_exchanges"`
	PartnerExchanges int                  `json:"partner_exchanges"`
	Guidance         *safety.Guidance     `json:"guidance,omitempty"`
}

func ToStatusResponse(v *brain.StatusView) *StatusResponse {
	return &StatusResponse{
		QuestionID:       v.QuestionID,
		Status:           v.Status,
		RedFlagDetected:  v.RedFlagDetected,
		AskerExchanges:   v.AskerExchanges,
		PartnerExchanges: v.PartnerExchanges,
		Guidance:         v.Guidance,
	}
}

type InsightResponse struct {
	ID                int64     `json:"id,string"`
	QuestionID        int64     `json:"question_id,string"`
	EmotionalSummary  string    `json:"emotional_summary"`
	ContextualSummary string    `json:"contextual_summary"`
	SuggestedAction   string    `json:"suggested_action"`
	CreatedAt         time.Time `json:"created_at"`
}

func ToInsightResponse(i *model.Insight) *InsightResponse {
	return &InsightResponse{
		ID:                i.ID,
		QuestionID:        i.QuestionID,
		EmotionalSummary:  i.EmotionalSummary,
		ContextualSummary: i.ContextualSummary,
		SuggestedAction:   i.SuggestedAction,
		CreatedAt:         i.CreatedAt,
	}
}

// CompletePartnerResponse reports the insight when synthesis ran, or the
// guidance when the question was closed by a red flag in the meantime.
type CompletePartnerResponse struct {
	Insight  *InsightResponse `json:"insight,omitempty"`
	Guidance *safety.Guidance `json:"guidance,omitempty"`
}
