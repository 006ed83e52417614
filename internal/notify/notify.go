package notify

import (
	"context"
	"log/slog"

	"safetalk.app/mediator/internal/queue"
)

// Notification is one message addressed to every device a user has registered.
type Notification struct {
	UserID   int64
	Template Template
	Title    string
	Body     string
	Data     map[string]string
}

// Notifier is fire-and-forget: delivery problems are logged, never returned,
// and never roll back the workflow that asked for the notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// QueueNotifier hands notifications to the worker through the task stream.
type QueueNotifier struct {
	producer queue.Producer
}

func NewQueueNotifier(producer queue.Producer) *QueueNotifier {
	return &QueueNotifier{producer: producer}
}

func (n *QueueNotifier) Notify(ctx context.Context, note Notification) {
	userID := note.UserID
	err := n.producer.Enqueue(ctx, queue.Task{
		TaskType: queue.TaskTypeNotification,
		UserID:   &userID,
		Template: string(note.Template),
		Title:    note.Title,
		Body:     note.Body,
		Data:     note.Data,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to enqueue notification",
			"error", err,
			"template", note.Template,
			"recipient_id", note.UserID)
	}
}
