package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"safetalk.app/mediator/internal/brain"
	"safetalk.app/mediator/internal/notify"
	"safetalk.app/mediator/internal/queue"
)

// PermanentError marks a task that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func permanent(err error) error {
	return &PermanentError{Err: err}
}

func isPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

type Processor struct {
	tokens    PushTokens
	pusher    Pusher
	completer PhaseCompleter
}

func NewProcessor(tokens PushTokens, pusher Pusher, completer PhaseCompleter) *Processor {
	return &Processor{
		tokens:    tokens,
		pusher:    pusher,
		completer: completer,
	}
}

func (p *Processor) Process(ctx context.Context, task queue.Task) error {
	switch task.TaskType {
	case queue.TaskTypeNotification:
		return p.deliver(ctx, task)
	case queue.TaskTypePartnerPhaseComplete:
		return p.completePartnerPhase(ctx, task)
	default:
		return permanent(fmt.Errorf("unknown task type %q", task.TaskType))
	}
}

// deliver sends a notification to every device of its recipient. A user with
// no devices is not an error. Only a delivery where every device failed is
// retried, so no device is sent the same message twice.
func (p *Processor) deliver(ctx context.Context, task queue.Task) error {
	userID := *task.UserID

	tokens, err := p.tokens.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing push tokens: %w", err)
	}
	if len(tokens) == 0 {
		slog.InfoContext(ctx, "recipient has no registered devices, dropping notification",
			"recipient_id", userID,
			"template", task.Template)
		return nil
	}

	devices := make([]string, len(tokens))
	for i, t := range tokens {
		devices[i] = t.DeviceToken
	}

	res, err := p.pusher.Send(ctx, devices, notify.Notification{
		UserID:   userID,
		Template: notify.Template(task.Template),
		Title:    task.Title,
		Body:     task.Body,
		Data:     task.Data,
	})
	if err != nil {
		return fmt.Errorf("sending push: %w", err)
	}

	slog.InfoContext(ctx, "notification delivered",
		"recipient_id", userID,
		"template", task.Template,
		"sent", res.Sent,
		"failed", res.Failed)

	if res.Sent == 0 && res.Failed > 0 {
		return fmt.Errorf("push failed on all %d devices", res.Failed)
	}
	return nil
}

// completePartnerPhase runs synthesis for a scheduled completion. A question
// that was flagged, declined or already answered in the meantime is expected
// and acknowledged; only retryable failures go back on the stream.
func (p *Processor) completePartnerPhase(ctx context.Context, task queue.Task) error {
	questionID := *task.QuestionID

	insight, err := p.completer.CompletePartnerPhase(ctx, questionID, nil)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "partner phase completed", "insight_id", insight.ID)
		return nil
	case brain.IsRetryable(err):
		return err
	case brain.KindOf(err) == brain.KindInvariant, errors.Is(err, brain.ErrNotFound):
		slog.WarnContext(ctx, "partner phase completion skipped", "reason", err)
		return nil
	default:
		return permanent(err)
	}
}
