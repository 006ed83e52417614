package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"safetalk.app/mediator/common/id"
	"safetalk.app/mediator/common/llm"
	"safetalk.app/mediator/common/logger"
	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/notify"
	"safetalk.app/mediator/internal/store"
)

// Synthesizer turns both reflection logs of a question into its single Insight.
type Synthesizer struct {
	stores   StoreProvider
	tx       TxRunner
	model    ModelSettings
	timeout  time.Duration
	notifier notify.Notifier

	// Concurrent calls for one question in this process share a single model call.
	group singleflight.Group
}

func NewSynthesizer(stores StoreProvider, tx TxRunner, m ModelSettings, timeout time.Duration, notifier notify.Notifier) *Synthesizer {
	return &Synthesizer{
		stores:   stores,
		tx:       tx,
		model:    m,
		timeout:  timeout,
		notifier: notifier,
	}
}

// Synthesize creates the question's Insight and moves it to answered. If the
// Insight already exists it is returned unchanged and nothing is written.
func (s *Synthesizer) Synthesize(ctx context.Context, questionID int64) (*model.Insight, error) {
	v, err, _ := s.group.Do(strconv.FormatInt(questionID, 10), func() (any, error) {
		return s.synthesize(ctx, questionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Insight), nil
}

func (s *Synthesizer) synthesize(ctx context.Context, questionID int64) (*model.Insight, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		QuestionID: &questionID,
		Component:  "mediator.brain.synthesizer",
	})
	sc := logger.StartSpan(ctx, "brain.insight.synthesize")
	defer sc.End()
	ctx = sc.Context()

	q, err := s.stores.Questions().GetByID(ctx, questionID)
	if err != nil {
		return nil, loadError("loading question", err)
	}

	if existing, err := s.existing(ctx, questionID); err != nil || existing != nil {
		return existing, err
	}

	if err := s.checkPreconditions(ctx, s.stores, q); err != nil {
		syntheses.WithLabelValues("aborted").Inc()
		return nil, err
	}

	asker, partner, err := s.logs(ctx, questionID)
	if err != nil {
		syntheses.WithLabelValues("aborted").Inc()
		return nil, err
	}

	text, err := complete(ctx, phaseInsight, s.model, s.timeout, insightSystemPrompt, []llm.Message{
		{Role: llm.RoleUser, Content: insightPrompt(q.Text, asker, partner)},
	})
	if err != nil {
		sc.RecordError(err)
		syntheses.WithLabelValues("failed").Inc()
		return nil, err
	}

	sections, err := parseInsight(text)
	if err != nil {
		slog.WarnContext(ctx, "insight output did not follow the section contract",
			"error", err,
			"output_preview", logger.Truncate(text, 200))
		syntheses.WithLabelValues("malformed").Inc()
		return nil, malformedError(err)
	}

	insight := &model.Insight{
		ID:                id.New(),
		QuestionID:        questionID,
		EmotionalSummary:  sections.Emotional,
		ContextualSummary: sections.Context,
		SuggestedAction:   sections.Approach,
	}

	var lost *model.Insight
	err = s.tx.WithTx(ctx, func(stores StoreProvider) error {
		locked, err := stores.Questions().GetForUpdate(ctx, questionID)
		if err != nil {
			return fmt.Errorf("locking question: %w", err)
		}
		// Re-checked under the row lock so a flag raised during the model call wins.
		if locked.Status == model.QuestionStatusAnswered {
			lost, err = stores.Insights().GetByQuestion(ctx, questionID)
			if err == nil {
				return nil
			}
		}
		if err := s.checkPreconditions(ctx, stores, locked); err != nil {
			return err
		}

		if err := stores.Insights().Create(ctx, insight); err != nil {
			return fmt.Errorf("inserting insight: %w", err)
		}
		if _, err := stores.Questions().Transition(ctx, questionID, model.QuestionStatusPartnerReflecting, model.QuestionStatusAnswered); err != nil {
			return fmt.Errorf("marking question answered: %w", err)
		}
		return nil
	})
	if err != nil {
		syntheses.WithLabelValues("aborted").Inc()
		var be *Error
		if errors.As(err, &be) {
			return nil, err
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, invariantError(fmt.Errorf("insight already exists: %w", err))
		}
		return nil, transientError(err)
	}
	if lost != nil {
		syntheses.WithLabelValues("existing").Inc()
		return lost, nil
	}

	syntheses.WithLabelValues("created").Inc()
	slog.InfoContext(ctx, "insight created", "insight_id", insight.ID)

	s.notifyAsker(ctx, q)
	return insight, nil
}

func (s *Synthesizer) existing(ctx context.Context, questionID int64) (*model.Insight, error) {
	in, err := s.stores.Insights().GetByQuestion(ctx, questionID)
	if err == nil {
		syntheses.WithLabelValues("existing").Inc()
		return in, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return nil, transientError(fmt.Errorf("checking for insight: %w", err))
}

func (s *Synthesizer) checkPreconditions(ctx context.Context, stores StoreProvider, q *model.Question) error {
	if q.Status == model.QuestionStatusRedFlag {
		return invariantError(fmt.Errorf("%w: %w", ErrQuestionClosed, ErrFlagged))
	}
	if q.Status.IsTerminal() {
		return invariantError(fmt.Errorf("%w: status %s", ErrQuestionClosed, q.Status))
	}
	if q.Status != model.QuestionStatusPartnerReflecting {
		return invariantError(fmt.Errorf("%w: synthesis while %s", ErrWrongPhase, q.Status))
	}

	flags, err := stores.RedFlags().CountByQuestion(ctx, q.ID)
	if err != nil {
		return transientError(fmt.Errorf("counting red flags: %w", err))
	}
	if flags > 0 {
		return invariantError(ErrFlagged)
	}
	return nil
}

func (s *Synthesizer) logs(ctx context.Context, questionID int64) (*model.ReflectionLog, *model.ReflectionLog, error) {
	all, err := s.stores.Reflections().ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, nil, transientError(fmt.Errorf("listing reflections: %w", err))
	}

	var asker, partner *model.ReflectionLog
	for i := range all {
		switch all[i].Role {
		case model.RoleAsker:
			asker = &all[i]
		case model.RolePartner:
			partner = &all[i]
		}
	}
	if asker == nil || asker.HumanTurns() == 0 {
		return nil, nil, invariantError(fmt.Errorf("%w: asker", ErrMissingLog))
	}
	if partner == nil || partner.HumanTurns() == 0 {
		return nil, nil, invariantError(fmt.Errorf("%w: partner", ErrMissingLog))
	}
	return asker, partner, nil
}

func (s *Synthesizer) notifyAsker(ctx context.Context, q *model.Question) {
	var name string
	if partner, err := s.stores.Users().GetByID(ctx, q.PartnerID); err == nil {
		name = partner.FullName
	}
	s.notifier.Notify(ctx, notify.InsightsReady(q.AskerID, name, q.ID))
}
