package queue

import "encoding/json"

type TaskType string

const (
	// TaskTypeNotification delivers a push notification to a user's devices.
	TaskTypeNotification TaskType = "notification"
	// TaskTypePartnerPhaseComplete closes a question's partner phase and synthesizes the insight.
	TaskTypePartnerPhaseComplete TaskType = "partner_phase_complete"
)

type Task struct {
	TaskType   TaskType
	QuestionID *int64
	UserID     *int64
	Template   string
	Title      string
	Body       string
	Data       map[string]string
	TraceID    string
	Attempt    int
}

// values flattens a task into redis stream fields.
func (t Task) values(attempt int) map[string]any {
	if attempt <= 0 {
		attempt = 1
	}

	values := map[string]any{
		"task_type": string(t.TaskType),
		"attempt":   attempt,
	}

	if t.QuestionID != nil {
		values["question_id"] = *t.QuestionID
	}
	if t.UserID != nil {
		values["user_id"] = *t.UserID
	}
	if t.Template != "" {
		values["template"] = t.Template
	}
	if t.Title != "" {
		values["title"] = t.Title
	}
	if t.Body != "" {
		values["body"] = t.Body
	}
	if len(t.Data) > 0 {
		if raw, err := json.Marshal(t.Data); err == nil {
			values["data"] = string(raw)
		}
	}
	if t.TraceID != "" {
		values["trace_id"] = t.TraceID
	}

	return values
}
