package model

import "time"

type QuestionStatus string

const (
	QuestionStatusPending           QuestionStatus = "pending"
	QuestionStatusClarifying        QuestionStatus = "clarifying"
	QuestionStatusPartnerReflecting QuestionStatus = "partner_reflecting"
	QuestionStatusAnswered          QuestionStatus = "answered"
	QuestionStatusRedFlag           QuestionStatus = "red_flag"
	QuestionStatusRejected          QuestionStatus = "rejected"
)

// IsTerminal reports whether no further writes to the question or its logs are allowed.
func (s QuestionStatus) IsTerminal() bool {
	switch s {
	case QuestionStatusAnswered, QuestionStatusRedFlag, QuestionStatusRejected:
		return true
	}
	return false
}

func (s QuestionStatus) Valid() bool {
	switch s {
	case QuestionStatusPending, QuestionStatusClarifying, QuestionStatusPartnerReflecting,
		QuestionStatusAnswered, QuestionStatusRedFlag, QuestionStatusRejected:
		return true
	}
	return false
}

type Question struct {
	ID              int64          `json:"id"`
	AskerID         int64          `json:"asker_id"`
	PartnerID       int64          `json:"partner_id"`
	Text            string         `json:"text"`
	Status          QuestionStatus `json:"status"`
	RedFlagDetected bool           `json:"red_flag_detected"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ParticipantRole returns the role userID plays in the question, if any.
func (q *Question) ParticipantRole(userID int64) (Role, bool) {
	switch userID {
	case q.AskerID:
		return RoleAsker, true
	case q.PartnerID:
		return RolePartner, true
	}
	return "", false
}

// UserFor returns the user that holds role in the question.
func (q *Question) UserFor(role Role) int64 {
	if role == RolePartner {
		return q.PartnerID
	}
	return q.AskerID
}
