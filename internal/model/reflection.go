package model

import "time"

type Role string

const (
	RoleAsker   Role = "asker"
	RolePartner Role = "partner"
)

func (r Role) Valid() bool {
	return r == RoleAsker || r == RolePartner
}

type Speaker string

const (
	SpeakerHuman     Speaker = "human"
	SpeakerAssistant Speaker = "assistant"
)

type Turn struct {
	Seq       int32     `json:"seq"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ReflectionLog is the ordered transcript of one role's dialog about a question.
// There is at most one per (question, role).
type ReflectionLog struct {
	ID         int64     `json:"id"`
	QuestionID int64     `json:"question_id"`
	Role       Role      `json:"role"`
	Turns      []Turn    `json:"turns"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HumanTurns counts the answered exchanges in the log.
func (l *ReflectionLog) HumanTurns() int {
	n := 0
	for _, t := range l.Turns {
		if t.Speaker == SpeakerHuman {
			n++
		}
	}
	return n
}

// AssistantTurns counts the assistant replies in the log, the opening included.
func (l *ReflectionLog) AssistantTurns() int {
	return len(l.Turns) - l.HumanTurns()
}

// LastAssistantTurn returns the most recent assistant turn, if any.
func (l *ReflectionLog) LastAssistantTurn() (Turn, bool) {
	for i := len(l.Turns) - 1; i >= 0; i-- {
		if l.Turns[i].Speaker == SpeakerAssistant {
			return l.Turns[i], true
		}
	}
	return Turn{}, false
}

// NextSeq is the sequence number the next appended turn must take.
func (l *ReflectionLog) NextSeq() int32 {
	if len(l.Turns) == 0 {
		return 1
	}
	return l.Turns[len(l.Turns)-1].Seq + 1
}
