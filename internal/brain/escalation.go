package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"safetalk.app/mediator/common/id"
	"safetalk.app/mediator/common/logger"
	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/safety"
	"safetalk.app/mediator/internal/store"
)

type EscalationInput struct {
	QuestionID    int64
	Role          model.Role
	TriggerPhrase string
	Severity      model.Severity
	Category      model.Category
}

// Escalator records a flagged turn and moves its question to red_flag.
type Escalator struct {
	stores StoreProvider
	tx     TxRunner
	engine *safety.Engine
}

func NewEscalator(stores StoreProvider, tx TxRunner, engine *safety.Engine) *Escalator {
	return &Escalator{stores: stores, tx: tx, engine: engine}
}

// Escalate always returns guidance for the flag, even when recording it failed.
// The event insert and the status write run in one transaction under the
// question row lock; if that transaction fails each write is retried on its
// own so a failure of one does not block the other.
func (e *Escalator) Escalate(ctx context.Context, in EscalationInput) safety.Guidance {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		QuestionID: &in.QuestionID,
		Role:       logger.Ptr(string(in.Role)),
		Component:  "mediator.brain.escalation",
	})

	guidance := e.engine.Guidance(in.Severity, in.Category)
	event := newRedFlagEvent(in)

	escalations.WithLabelValues(string(in.Category), string(in.Severity)).Inc()

	var closed bool
	err := e.tx.WithTx(ctx, func(stores StoreProvider) error {
		q, err := stores.Questions().GetForUpdate(ctx, in.QuestionID)
		if err != nil {
			return fmt.Errorf("locking question: %w", err)
		}
		if q.Status.IsTerminal() {
			closed = true
			return nil
		}
		return recordFlag(ctx, stores, event)
	})

	switch {
	case err == nil && closed:
		slog.InfoContext(ctx, "flag raised on closed question, nothing recorded",
			"category", in.Category,
			"severity", in.Severity)
	case err == nil:
		slog.WarnContext(ctx, "question escalated",
			"category", in.Category,
			"severity", in.Severity,
			"trigger", in.TriggerPhrase)
	default:
		slog.ErrorContext(ctx, "escalation transaction failed, writing separately", "error", err)
		e.writeSeparately(ctx, event)
	}

	return guidance
}

// EscalateInTx records the flag through stores, which must belong to a
// transaction the caller owns. Used when the flagged text and the question it
// belongs to are written together.
func (e *Escalator) EscalateInTx(ctx context.Context, stores StoreProvider, in EscalationInput) (safety.Guidance, error) {
	if err := recordFlag(ctx, stores, newRedFlagEvent(in)); err != nil {
		return safety.Guidance{}, err
	}
	escalations.WithLabelValues(string(in.Category), string(in.Severity)).Inc()
	return e.engine.Guidance(in.Severity, in.Category), nil
}

func newRedFlagEvent(in EscalationInput) *model.RedFlagEvent {
	return &model.RedFlagEvent{
		ID:            id.New(),
		QuestionID:    in.QuestionID,
		TriggerPhrase: in.TriggerPhrase,
		WhoTriggered:  in.Role,
		Severity:      in.Severity,
		Category:      in.Category,
		ActionTaken:   fmt.Sprintf("halted %s dialog, offered %s", in.Role, safety.ActionFor(in.Severity, in.Category)),
	}
}

func recordFlag(ctx context.Context, stores StoreProvider, event *model.RedFlagEvent) error {
	if err := stores.RedFlags().Create(ctx, event); err != nil {
		return fmt.Errorf("recording red flag: %w", err)
	}
	if _, err := stores.Questions().MarkRedFlag(ctx, event.QuestionID); err != nil {
		return fmt.Errorf("marking question: %w", err)
	}
	return nil
}

// writeSeparately is the fallback when the escalation transaction failed. An
// answered or rejected question takes no new events; if the status cannot be
// read the writes are still attempted, and MarkRedFlag refuses closed rows.
func (e *Escalator) writeSeparately(ctx context.Context, event *model.RedFlagEvent) {
	current, err := e.stores.Questions().GetByID(ctx, event.QuestionID)
	if err != nil {
		slog.WarnContext(ctx, "re-reading question before fallback writes", "error", err)
	} else if current.Status == model.QuestionStatusAnswered || current.Status == model.QuestionStatusRejected {
		slog.InfoContext(ctx, "question closed before fallback writes, nothing recorded", "status", current.Status)
		return
	}

	if err := e.stores.RedFlags().Create(ctx, event); err != nil && !errors.Is(err, store.ErrConflict) {
		slog.ErrorContext(ctx, "failed to record red flag event", "error", err)
	}
	if _, err := e.stores.Questions().MarkRedFlag(ctx, event.QuestionID); err != nil && !errors.Is(err, store.ErrConflict) {
		slog.ErrorContext(ctx, "failed to mark question red_flag", "error", err)
	}
}

// GuidanceFor rebuilds the guidance for a question that is already red_flag,
// using its most severe recorded event.
func (e *Escalator) GuidanceFor(ctx context.Context, questionID int64) (safety.Guidance, error) {
	events, err := e.stores.RedFlags().ListByQuestion(ctx, questionID)
	if err != nil {
		return safety.Guidance{}, fmt.Errorf("listing red flags: %w", err)
	}

	severity, category := model.SeverityMedium, model.CategoryEmotional
	worst := 0
	for _, ev := range events {
		if r := ev.Severity.Rank(); r > worst {
			worst, severity, category = r, ev.Severity, ev.Category
		}
	}
	return e.engine.Guidance(severity, category), nil
}
