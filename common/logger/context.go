package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so a question id set at the HTTP edge shows up
// on every log line the dialog driver, escalation handler and store emit for that request.
type LogFields struct {
	QuestionID *int64  // Question being advanced, escalated or synthesized
	UserID     *int64  // Caller (asker or partner)
	Role       *string // Dialog role: "asker" or "partner"
	TaskType   *string // Queue task type (e.g., "notification", "partner_phase_complete")
	MessageID  *string // Redis stream message ID
	Component  string  // Component name (e.g., "mediator.brain.dialog")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.QuestionID != nil {
		result.QuestionID = new.QuestionID
	}
	if new.UserID != nil {
		result.UserID = new.UserID
	}
	if new.Role != nil {
		result.Role = new.Role
	}
	if new.TaskType != nil {
		result.TaskType = new.TaskType
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{QuestionID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
