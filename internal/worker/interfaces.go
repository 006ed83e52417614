package worker

import (
	"context"

	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/notify"
	"safetalk.app/mediator/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// TaskProcessor handles one decoded task.
type TaskProcessor interface {
	Process(ctx context.Context, task queue.Task) error
}

// PushTokens resolves a user's registered devices.
type PushTokens interface {
	ListByUser(ctx context.Context, userID int64) ([]model.PushToken, error)
}

// Pusher delivers a notification to explicit device tokens.
type Pusher interface {
	Send(ctx context.Context, tokens []string, n notify.Notification) (notify.PushResult, error)
}

// PhaseCompleter closes a partner phase; the orchestrator implements it.
type PhaseCompleter interface {
	CompletePartnerPhase(ctx context.Context, questionID int64, userID *int64) (*model.Insight, error)
}
