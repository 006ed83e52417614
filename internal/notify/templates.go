package notify

import (
	"fmt"
	"strconv"
)

type Template string

const (
	TemplateNewQuestion     Template = "new_question"
	TemplateInsightsReady   Template = "insights_ready"
	TemplatePartnerResponse Template = "partner_response"
)

func fallbackName(name string) string {
	if name == "" {
		return "Your partner"
	}
	return name
}

// NewQuestion tells the partner that askerName asked about them.
func NewQuestion(partnerID int64, askerName string, questionID int64) Notification {
	return Notification{
		UserID:   partnerID,
		Template: TemplateNewQuestion,
		Title:    fmt.Sprintf("%s asked about you", fallbackName(askerName)),
		Body:     "They want to understand you better. Tap to respond.",
		Data:     templateData(TemplateNewQuestion, questionID),
	}
}

// InsightsReady tells the asker their insight can be read.
func InsightsReady(askerID int64, partnerName string, questionID int64) Notification {
	return Notification{
		UserID:   askerID,
		Template: TemplateInsightsReady,
		Title:    "Insights ready",
		Body:     fmt.Sprintf("Your conversation with %s has been analyzed. Tap to see insights.", fallbackName(partnerName)),
		Data:     templateData(TemplateInsightsReady, questionID),
	}
}

// PartnerResponse tells the asker the partner has started reflecting.
func PartnerResponse(askerID int64, partnerName string, questionID int64) Notification {
	return Notification{
		UserID:   askerID,
		Template: TemplatePartnerResponse,
		Title:    fmt.Sprintf("%s responded", fallbackName(partnerName)),
		Body:     "They shared something important with you.",
		Data:     templateData(TemplatePartnerResponse, questionID),
	}
}

func templateData(t Template, questionID int64) map[string]string {
	return map[string]string{
		"type":        string(t),
		"question_id": strconv.FormatInt(questionID, 10),
	}
}
