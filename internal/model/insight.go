package model

import "time"

type Insight struct {
	ID                int64     `json:"id"`
	QuestionID        int64     `json:"question_id"`
	EmotionalSummary  string    `json:"emotional_summary"`
	ContextualSummary string    `json:"contextual_summary"`
	SuggestedAction   string    `json:"suggested_action"`
	CreatedAt         time.Time `json:"created_at"`
}
