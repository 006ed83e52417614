package model

import "time"

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities so the worst of several events can be picked.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

type Category string

const (
	CategoryPhysical  Category = "physical"
	CategoryThreats   Category = "threats"
	CategoryDistress  Category = "distress"
	CategoryControl   Category = "control"
	CategoryEmotional Category = "emotional"
	CategoryFinancial Category = "financial"
	CategorySexual    Category = "sexual"
	CategorySubstance Category = "substance"
)

// RedFlagEvent is append-only: it is never updated or deleted once written.
type RedFlagEvent struct {
	ID            int64     `json:"id"`
	QuestionID    int64     `json:"question_id"`
	TriggerPhrase string    `json:"trigger_phrase"`
	WhoTriggered  Role      `json:"who_triggered"`
	Severity      Severity  `json:"severity"`
	Category      Category  `json:"category"`
	ActionTaken   string    `json:"action_taken"`
	CreatedAt     time.Time `json:"created_at"`
}
