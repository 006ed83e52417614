package brain

import (
	"fmt"
	"strings"

	"safetalk.app/mediator/internal/model"
)

const clarifySystemPrompt = `You are SafeTalk AI, a compassionate relationship counselor helping someone understand their feelings about their partner. Your role is to gently explore the deeper meaning behind their question with empathy and understanding.

Always start by acknowledging what the user has shared and showing empathy for their situation before asking a follow-up question.

Guidelines:
- Begin each response by reflecting back what you heard and validating their feelings
- Use warm, non-judgmental language
- Ask one thoughtful question at a time
- Focus on emotions, motivations, and underlying needs
- Help them articulate what they are really seeking
- Keep responses concise but meaningful`

const reflectionSystemPrompt = `You are SafeTalk AI, a gentle and skilled relationship counselor. You are having a private, confidential conversation with someone whose partner has asked a question about them. Your goal is to create a safe space for honest reflection.

Always acknowledge their willingness to take part before exploring their feelings.

Guidelines:
- Acknowledge that this might feel vulnerable or unusual
- Use therapeutic, non-invasive questioning techniques
- Focus on their emotional experience and perspective
- Help them explore their feelings without judgment
- Never repeat specific details from their partner's side of the conversation
- Be patient and allow natural conversation flow`

const insightSystemPrompt = `You are SafeTalk AI, creating compassionate insights to help someone better understand their partner. Synthesize both conversations into actionable, empathetic guidance.

Guidelines:
- Acknowledge the asker's genuine care for their partner
- Focus on emotional needs and underlying feelings
- Provide specific, actionable suggestions
- Avoid assumptions or judgments
- Do not quote the partner's words directly

Respond with exactly three sections, each starting on its own line with its label, in this order and with nothing before the first label:
Emotional Insight: what the partner is feeling
Context: what is contributing to these feelings
Suggested Approach: specific ways to help and connect`

const (
	labelEmotional = "Emotional Insight"
	labelContext   = "Context"
	labelApproach  = "Suggested Approach"
)

var askerOpenings = []string{
	"I can hear that this is really important to you.",
	"Thank you for sharing something so personal with me.",
	"I can sense how much you care about your relationship.",
	"It takes courage to ask these kinds of questions.",
	"I appreciate you being so open about your feelings.",
}

var partnerOpenings = []string{
	"Thank you for being open to this conversation.",
	"I really appreciate you taking a few minutes for this.",
	"Thank you for being here. I know this might feel a bit unusual.",
}

// openingLine picks the acknowledgment prepended to a dialog's first assistant
// turn. The choice depends only on the question and role so a replayed opening
// reads the same.
func openingLine(questionID int64, role model.Role) string {
	lines := askerOpenings
	if role == model.RolePartner {
		lines = partnerOpenings
	}
	idx := questionID % int64(len(lines))
	if idx < 0 {
		idx = -idx
	}
	return lines[idx]
}

func systemPromptFor(role model.Role) string {
	if role == model.RolePartner {
		return reflectionSystemPrompt
	}
	return clarifySystemPrompt
}

// seedPrompt is the first user message of every dialog; it frames the question
// for the model and is never stored in the reflection log.
func seedPrompt(role model.Role, questionText string) string {
	if role == model.RolePartner {
		return fmt.Sprintf("Their partner asked: %q\n\nStart a gentle, empathetic conversation to understand their emotional state and perspective. Acknowledge their participation and show appreciation for their openness.", questionText)
	}
	return fmt.Sprintf("The user asked: %q\n\nAcknowledge their question with empathy and ask a thoughtful follow-up to understand their deeper feelings and motivations.", questionText)
}

func insightPrompt(questionText string, asker, partner *model.ReflectionLog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question the asker submitted: %q\n\n", questionText)
	b.WriteString("Asker's conversation:\n")
	writeTranscript(&b, asker, "Asker")
	b.WriteString("\nPartner's conversation:\n")
	writeTranscript(&b, partner, "Partner")
	b.WriteString("\nCreate empathetic insights for the asker in the three labeled sections.")
	return b.String()
}

func writeTranscript(b *strings.Builder, log *model.ReflectionLog, human string) {
	for _, t := range log.Turns {
		speaker := "Counselor"
		if t.Speaker == model.SpeakerHuman {
			speaker = human
		}
		fmt.Fprintf(b, "%s: %s\n", speaker, t.Text)
	}
}
