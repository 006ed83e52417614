package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"safetalk.app/mediator/common/llm"
	"safetalk.app/mediator/common/logger"
	"safetalk.app/mediator/core/config"
	"safetalk.app/mediator/internal/lock"
	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/safety"
	"safetalk.app/mediator/internal/store"
)

// AdvanceResult is the outcome of one dialog step. Escalated is not an error:
// it is the defined outcome of a flagged turn and always carries Guidance.
type AdvanceResult struct {
	AssistantText string
	PhaseComplete bool
	Escalated     bool
	Guidance      *safety.Guidance
	// Exchanges counts the human turns answered so far in this dialog.
	Exchanges int
	// Replayed is set when an opening call found the dialog already open.
	Replayed bool
}

// DialogDriver advances one role's reflection dialog by a single turn.
type DialogDriver struct {
	stores    StoreProvider
	tx        TxRunner
	engine    *safety.Engine
	escalator *Escalator
	locker    lock.Locker
	models    map[model.Role]ModelSettings
	cfg       config.DialogConfig
}

func NewDialogDriver(
	stores StoreProvider,
	tx TxRunner,
	engine *safety.Engine,
	escalator *Escalator,
	locker lock.Locker,
	clarify ModelSettings,
	reflection ModelSettings,
	cfg config.DialogConfig,
) *DialogDriver {
	return &DialogDriver{
		stores:    stores,
		tx:        tx,
		engine:    engine,
		escalator: escalator,
		locker:    locker,
		models: map[model.Role]ModelSettings{
			model.RoleAsker:   clarify,
			model.RolePartner: reflection,
		},
		cfg: cfg,
	}
}

// Advance runs one turn of q's dialog for role. A nil text is the opening call.
//
// A human turn is classified before anything else happens. A flagged turn is
// escalated and never reaches the model or the log. Otherwise the human turn
// and the model's reply are appended together, only after the model answered,
// so a failed call leaves the log untouched.
func (d *DialogDriver) Advance(ctx context.Context, q *model.Question, role model.Role, text *string) (*AdvanceResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		QuestionID: &q.ID,
		Role:       logger.Ptr(string(role)),
		Component:  "mediator.brain.dialog",
	})

	if text != nil {
		trimmed := strings.TrimSpace(*text)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: empty message", ErrInvalidInput)
		}
		text = &trimmed

		if c := d.engine.Classify(trimmed); c.Flagged {
			guidance := d.escalator.Escalate(ctx, EscalationInput{
				QuestionID:    q.ID,
				Role:          role,
				TriggerPhrase: c.TriggerPhrase,
				Severity:      c.Severity,
				Category:      c.Category,
			})
			dialogTurns.WithLabelValues(string(role), "escalated").Inc()
			return &AdvanceResult{Escalated: true, Guidance: &guidance}, nil
		}
	}

	sc := logger.StartSpan(ctx, "brain.dialog.advance")
	defer sc.End()
	ctx = sc.Context()

	lease, err := d.locker.Acquire(ctx, fmt.Sprintf("%d:%s", q.ID, role), d.cfg.LockTTL)
	if err != nil {
		return nil, transientError(fmt.Errorf("acquiring dialog lock: %w", err))
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			slog.WarnContext(ctx, "releasing dialog lock", "error", err)
		}
	}()

	// Re-read under the lock: another turn may have moved the question on.
	current, err := d.stores.Questions().GetByID(ctx, q.ID)
	if err != nil {
		return nil, loadError("loading question", err)
	}
	if res, err := d.checkPhase(ctx, current, role); res != nil || err != nil {
		return res, err
	}

	// The question text seeds every prompt of both dialogs, so it is screened
	// again here in case its flag was never recorded.
	if c := d.engine.Classify(current.Text); c.Flagged {
		guidance := d.escalator.Escalate(ctx, EscalationInput{
			QuestionID:    q.ID,
			Role:          model.RoleAsker,
			TriggerPhrase: c.TriggerPhrase,
			Severity:      c.Severity,
			Category:      c.Category,
		})
		dialogTurns.WithLabelValues(string(role), "escalated").Inc()
		return &AdvanceResult{Escalated: true, Guidance: &guidance}, nil
	}

	log, err := d.stores.Reflections().Open(ctx, q.ID, role)
	if err != nil {
		return nil, transientError(fmt.Errorf("opening reflection log: %w", err))
	}

	if text == nil && len(log.Turns) > 0 {
		last, _ := log.LastAssistantTurn()
		dialogTurns.WithLabelValues(string(role), "replayed").Inc()
		return &AdvanceResult{
			AssistantText: last.Text,
			Exchanges:     log.HumanTurns(),
			PhaseComplete: d.phaseComplete(role, log.HumanTurns()),
			Replayed:      true,
		}, nil
	}

	reply, err := complete(ctx, phaseFor(role), d.models[role], d.cfg.LLMTimeout,
		systemPromptFor(role), buildHistory(current, role, log, text))
	if err != nil {
		sc.RecordError(err)
		dialogTurns.WithLabelValues(string(role), "failed").Inc()
		return nil, err
	}
	if log.AssistantTurns() == 0 {
		reply = openingLine(q.ID, role) + " " + reply
	}

	turns := make([]model.Turn, 0, 2)
	if text != nil {
		turns = append(turns, model.Turn{Speaker: model.SpeakerHuman, Text: *text})
	}
	turns = append(turns, model.Turn{Speaker: model.SpeakerAssistant, Text: reply})

	exchanges := log.HumanTurns()
	if text != nil {
		exchanges++
	}
	done := d.phaseComplete(role, exchanges)

	var halted *AdvanceResult
	err = d.tx.WithTx(ctx, func(stores StoreProvider) error {
		locked, err := stores.Questions().GetForUpdate(ctx, q.ID)
		if err != nil {
			return fmt.Errorf("locking question: %w", err)
		}
		// A flag from the other role may have landed while the model was thinking.
		if res, err := d.checkPhase(ctx, locked, role); res != nil || err != nil {
			halted = res
			return err
		}

		// The reply was built on log; if the lease lapsed and another turn landed,
		// appending would interleave two histories.
		tail, err := stores.Reflections().Get(ctx, q.ID, role)
		if err != nil {
			return fmt.Errorf("re-reading reflection log: %w", err)
		}
		if tail.NextSeq() != log.NextSeq() {
			return transientError(fmt.Errorf("%w: tail moved from %d to %d", ErrStaleHistory, log.NextSeq()-1, tail.NextSeq()-1))
		}

		if _, err := stores.Reflections().AppendTurns(ctx, log.ID, turns...); err != nil {
			return fmt.Errorf("appending turns: %w", err)
		}

		if done && role == model.RoleAsker {
			if _, err := stores.Questions().Transition(ctx, q.ID, model.QuestionStatusClarifying, model.QuestionStatusPartnerReflecting); err != nil {
				return fmt.Errorf("opening partner phase: %w", err)
			}
		}
		return nil
	})
	if halted != nil {
		return halted, nil
	}
	if err != nil {
		var be *Error
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, transientError(err)
	}

	outcome := "answered"
	if text == nil {
		outcome = "opened"
	}
	dialogTurns.WithLabelValues(string(role), outcome).Inc()

	slog.InfoContext(ctx, "dialog advanced",
		"exchanges", exchanges,
		"phase_complete", done)

	return &AdvanceResult{
		AssistantText: reply,
		PhaseComplete: done,
		Exchanges:     exchanges,
	}, nil
}

// checkPhase returns a non-nil result when the question is already red_flag,
// and an invariant error when the dialog for role is not open.
func (d *DialogDriver) checkPhase(ctx context.Context, q *model.Question, role model.Role) (*AdvanceResult, error) {
	if q.Status == model.QuestionStatusRedFlag {
		guidance, err := d.escalator.GuidanceFor(ctx, q.ID)
		if err != nil {
			return nil, transientError(err)
		}
		dialogTurns.WithLabelValues(string(role), "escalated").Inc()
		return &AdvanceResult{Escalated: true, Guidance: &guidance}, nil
	}
	if q.Status.IsTerminal() {
		return nil, invariantError(fmt.Errorf("%w: status %s", ErrQuestionClosed, q.Status))
	}
	if q.Status != phaseStatus(role) {
		return nil, invariantError(fmt.Errorf("%w: %s dialog while %s", ErrWrongPhase, role, q.Status))
	}
	return nil, nil
}

func (d *DialogDriver) phaseComplete(role model.Role, exchanges int) bool {
	if role == model.RoleAsker {
		return exchanges >= d.cfg.AskerExchanges
	}
	return d.cfg.PartnerCompletion == config.PartnerCompletionExchanges && exchanges >= d.cfg.PartnerExchanges
}

func phaseStatus(role model.Role) model.QuestionStatus {
	if role == model.RolePartner {
		return model.QuestionStatusPartnerReflecting
	}
	return model.QuestionStatusClarifying
}

func phaseFor(role model.Role) string {
	if role == model.RolePartner {
		return phaseReflection
	}
	return phaseClarify
}

// buildHistory is the seed prompt, the stored turns and the new human turn.
// Flagged text never gets here.
func buildHistory(q *model.Question, role model.Role, log *model.ReflectionLog, text *string) []llm.Message {
	msgs := make([]llm.Message, 0, len(log.Turns)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: seedPrompt(role, q.Text)})
	for _, t := range log.Turns {
		r := llm.RoleUser
		if t.Speaker == model.SpeakerAssistant {
			r = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: r, Content: t.Text})
	}
	if text != nil {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: *text})
	}
	return msgs
}

func loadError(what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return transientError(fmt.Errorf("%s: %w", what, err))
}
