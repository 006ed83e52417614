package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"safetalk.app/mediator/common"
	"safetalk.app/mediator/common/id"
	"safetalk.app/mediator/common/logger"
	"safetalk.app/mediator/core/config"
	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/notify"
	"safetalk.app/mediator/internal/queue"
	"safetalk.app/mediator/internal/safety"
	"safetalk.app/mediator/internal/store"
)

const maxQuestionLength = 2000

// Scheduler defers a task until at.
type Scheduler interface {
	Schedule(ctx context.Context, task queue.Task, at time.Time) error
}

type SubmitResult struct {
	Question  *model.Question
	Escalated bool
	Guidance  *safety.Guidance
}

type AdvanceRequest struct {
	QuestionID int64
	UserID     int64
	Role       model.Role
	// Text is nil for the call that opens the dialog.
	Text *string
}

type StatusView struct {
	QuestionID       int64                `json:"question_id"`
	Status           model.QuestionStatus `json:"status"`
	RedFlagDetected  bool                 `json:"red_flag_detected"`
	AskerExchanges   int                  `json:"asker_exchanges"`
	PartnerExchanges int                  `json:"partner_exchanges"`
	Guidance         *safety.Guidance     `json:"guidance,omitempty"`
}

// Orchestrator is the entry point for API and worker callers. It authorizes
// the caller against the question, then delegates to the dialog driver, the
// escalator and the synthesizer.
type Orchestrator struct {
	stores      StoreProvider
	tx          TxRunner
	engine      *safety.Engine
	driver      *DialogDriver
	escalator   *Escalator
	synthesizer *Synthesizer
	notifier    notify.Notifier
	scheduler   Scheduler
	cfg         config.DialogConfig
}

func NewOrchestrator(
	stores StoreProvider,
	tx TxRunner,
	engine *safety.Engine,
	driver *DialogDriver,
	escalator *Escalator,
	synthesizer *Synthesizer,
	notifier notify.Notifier,
	scheduler Scheduler,
	cfg config.DialogConfig,
) *Orchestrator {
	return &Orchestrator{
		stores:      stores,
		tx:          tx,
		engine:      engine,
		driver:      driver,
		escalator:   escalator,
		synthesizer: synthesizer,
		notifier:    notifier,
		scheduler:   scheduler,
		cfg:         cfg,
	}
}

// SubmitQuestion creates a question and opens the asker's clarification phase.
// The question text is screened like any human turn; a flagged question is
// escalated immediately and the partner is never told about it.
func (o *Orchestrator) SubmitQuestion(ctx context.Context, askerID int64, text string) (*SubmitResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    &askerID,
		Component: "mediator.brain.orchestrator",
	})

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: question text is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > maxQuestionLength {
		return nil, fmt.Errorf("%w: question text exceeds %d characters", ErrInvalidInput, maxQuestionLength)
	}

	asker, err := o.stores.Users().GetByID(ctx, askerID)
	if err != nil {
		return nil, loadError("loading asker", err)
	}
	if !asker.HasPartner() {
		return nil, ErrNoPartner
	}

	classification := o.engine.Classify(text)

	q := &model.Question{
		ID:        id.New(),
		AskerID:   askerID,
		PartnerID: *asker.PartnerID,
		Text:      text,
		Status:    model.QuestionStatusPending,
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{QuestionID: &q.ID})

	if classification.Flagged {
		return o.submitFlagged(ctx, q, classification), nil
	}

	err = o.tx.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Questions().Create(ctx, q); err != nil {
			return fmt.Errorf("creating question: %w", err)
		}
		opened, err := stores.Questions().Transition(ctx, q.ID, model.QuestionStatusPending, model.QuestionStatusClarifying)
		if err != nil {
			return fmt.Errorf("opening clarification: %w", err)
		}
		*q = *opened
		return nil
	})
	if err != nil {
		return nil, transientError(err)
	}

	slog.InfoContext(ctx, "question submitted")
	o.notifier.Notify(ctx, notify.NewQuestion(q.PartnerID, asker.FullName, q.ID))

	return &SubmitResult{Question: q}, nil
}

// submitFlagged stores a flagged question already halted: the question row,
// its red flag event and the red_flag status commit together or not at all.
// A question that never opened cannot reach a dialog, so when the write fails
// nothing is stored and the caller still gets the guidance.
func (o *Orchestrator) submitFlagged(ctx context.Context, q *model.Question, c safety.Classification) *SubmitResult {
	var guidance safety.Guidance
	err := o.tx.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Questions().Create(ctx, q); err != nil {
			return fmt.Errorf("creating question: %w", err)
		}
		g, err := o.escalator.EscalateInTx(ctx, stores, EscalationInput{
			QuestionID:    q.ID,
			Role:          model.RoleAsker,
			TriggerPhrase: c.TriggerPhrase,
			Severity:      c.Severity,
			Category:      c.Category,
		})
		if err != nil {
			return err
		}
		guidance = g
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "flagged question not stored", "error", err, "category", c.Category)
		guidance = o.engine.Guidance(c.Severity, c.Category)
		return &SubmitResult{Escalated: true, Guidance: &guidance}
	}

	slog.WarnContext(ctx, "question escalated on submit",
		"category", c.Category,
		"severity", c.Severity,
		"trigger", c.TriggerPhrase)

	q.Status = model.QuestionStatusRedFlag
	q.RedFlagDetected = true
	return &SubmitResult{Question: q, Escalated: true, Guidance: &guidance}
}

// AdvanceDialog runs one turn of the caller's dialog. Completing the asker
// phase opens the partner phase; the partner's first answered turn tells the
// asker their partner is reflecting and, depending on the completion policy,
// schedules the end of the partner phase.
func (o *Orchestrator) AdvanceDialog(ctx context.Context, req AdvanceRequest) (*AdvanceResult, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, req.Role)
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		QuestionID: &req.QuestionID,
		UserID:     &req.UserID,
		Role:       logger.Ptr(string(req.Role)),
		Component:  "mediator.brain.orchestrator",
	})

	q, err := o.authorize(ctx, req.QuestionID, req.UserID, req.Role)
	if err != nil {
		return nil, err
	}

	res, err := o.driver.Advance(ctx, q, req.Role, req.Text)
	if err != nil {
		return nil, err
	}
	if res.Escalated || res.Replayed {
		return res, nil
	}

	switch req.Role {
	case model.RoleAsker:
		if res.PhaseComplete {
			slog.InfoContext(ctx, "asker phase complete, partner phase open", "exchanges", res.Exchanges)
		}
	case model.RolePartner:
		if req.Text != nil && res.Exchanges == 1 {
			o.partnerEngaged(ctx, q)
		}
		if res.PhaseComplete {
			o.schedulePartnerCompletion(ctx, q.ID, time.Now())
		}
	}
	return res, nil
}

func (o *Orchestrator) partnerEngaged(ctx context.Context, q *model.Question) {
	var name string
	if partner, err := o.stores.Users().GetByID(ctx, q.PartnerID); err == nil {
		name = partner.FullName
	}
	o.notifier.Notify(ctx, notify.PartnerResponse(q.AskerID, name, q.ID))

	if o.cfg.PartnerCompletion == config.PartnerCompletionDelay {
		o.schedulePartnerCompletion(ctx, q.ID, time.Now().Add(o.cfg.PartnerDelay))
	}
}

func (o *Orchestrator) schedulePartnerCompletion(ctx context.Context, questionID int64, at time.Time) {
	err := o.scheduler.Schedule(ctx, queue.Task{
		TaskType:   queue.TaskTypePartnerPhaseComplete,
		QuestionID: &questionID,
	}, at)
	if err != nil {
		// The partner can still close the phase with the explicit signal.
		slog.ErrorContext(ctx, "failed to schedule partner phase completion", "error", err)
		return
	}
	slog.InfoContext(ctx, "partner phase completion scheduled", "at", at)
}

// CompletePartnerPhase closes the partner phase and synthesizes the insight.
// userID is nil when the call comes from the scheduler rather than the partner.
func (o *Orchestrator) CompletePartnerPhase(ctx context.Context, questionID int64, userID *int64) (*model.Insight, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		QuestionID: &questionID,
		UserID:     userID,
		Component:  "mediator.brain.orchestrator",
	})

	if userID != nil {
		if _, err := o.authorize(ctx, questionID, *userID, model.RolePartner); err != nil {
			return nil, err
		}
	}
	return o.synthesizer.Synthesize(ctx, questionID)
}

// DeclineQuestion lets the partner refuse to take part. Declining twice is a no-op.
func (o *Orchestrator) DeclineQuestion(ctx context.Context, questionID, userID int64) (*model.Question, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		QuestionID: &questionID,
		UserID:     &userID,
		Component:  "mediator.brain.orchestrator",
	})

	if _, err := o.authorize(ctx, questionID, userID, model.RolePartner); err != nil {
		return nil, err
	}

	var out *model.Question
	err := o.tx.WithTx(ctx, func(stores StoreProvider) error {
		q, err := stores.Questions().GetForUpdate(ctx, questionID)
		if err != nil {
			return fmt.Errorf("locking question: %w", err)
		}
		if q.Status == model.QuestionStatusRejected {
			out = q
			return nil
		}
		if q.Status.IsTerminal() {
			return invariantError(fmt.Errorf("%w: status %s", ErrQuestionClosed, q.Status))
		}
		out, err = stores.Questions().Transition(ctx, questionID, q.Status, model.QuestionStatusRejected)
		return err
	})
	if err != nil {
		if KindOf(err) != "" {
			return nil, err
		}
		return nil, transientError(err)
	}

	slog.InfoContext(ctx, "question declined by partner")
	return out, nil
}

// GetStatus reports the question's status as implied by its records: an
// Insight means answered and a RedFlagEvent means red_flag. A stored status
// that disagrees is repaired.
func (o *Orchestrator) GetStatus(ctx context.Context, questionID, userID int64) (*StatusView, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		QuestionID: &questionID,
		UserID:     &userID,
		Component:  "mediator.brain.orchestrator",
	})

	q, err := o.participant(ctx, questionID, userID)
	if err != nil {
		return nil, err
	}

	derived, err := o.deriveStatus(ctx, q)
	if err != nil {
		return nil, err
	}
	if derived != q.Status {
		q = o.repairStatus(ctx, q, derived)
	}

	view := &StatusView{
		QuestionID:      q.ID,
		Status:          derived,
		RedFlagDetected: q.RedFlagDetected || derived == model.QuestionStatusRedFlag,
	}

	logs, err := o.stores.Reflections().ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, transientError(fmt.Errorf("listing reflections: %w", err))
	}
	for i := range logs {
		switch logs[i].Role {
		case model.RoleAsker:
			view.AskerExchanges = logs[i].HumanTurns()
		case model.RolePartner:
			view.PartnerExchanges = logs[i].HumanTurns()
		}
	}

	if derived == model.QuestionStatusRedFlag {
		guidance, err := o.escalator.GuidanceFor(ctx, questionID)
		if err != nil {
			return nil, transientError(err)
		}
		view.Guidance = &guidance
	}
	return view, nil
}

func (o *Orchestrator) deriveStatus(ctx context.Context, q *model.Question) (model.QuestionStatus, error) {
	_, err := o.stores.Insights().GetByQuestion(ctx, q.ID)
	switch {
	case err == nil:
		return model.QuestionStatusAnswered, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", transientError(fmt.Errorf("checking insight: %w", err))
	}

	flags, err := o.stores.RedFlags().CountByQuestion(ctx, q.ID)
	if err != nil {
		return "", transientError(fmt.Errorf("counting red flags: %w", err))
	}
	if flags > 0 {
		return model.QuestionStatusRedFlag, nil
	}

	// Without either record a stored answered or red_flag is stale.
	switch q.Status {
	case model.QuestionStatusAnswered:
		return model.QuestionStatusPartnerReflecting, nil
	case model.QuestionStatusRedFlag:
		slog.ErrorContext(ctx, "question is red_flag without any red flag event")
		return model.QuestionStatusRedFlag, nil
	}
	return q.Status, nil
}

func (o *Orchestrator) repairStatus(ctx context.Context, q *model.Question, derived model.QuestionStatus) *model.Question {
	slog.WarnContext(ctx, "stored status disagrees with records, repairing",
		"stored", q.Status,
		"derived", derived)

	var (
		fixed *model.Question
		err   error
	)
	if derived == model.QuestionStatusRedFlag {
		fixed, err = o.stores.Questions().MarkRedFlag(ctx, q.ID)
	} else {
		fixed, err = o.stores.Questions().SetStatus(ctx, q.ID, derived)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repair question status", "error", err)
		return q
	}
	return fixed
}

// GetInsight returns the insight to the asker once the question is answered.
func (o *Orchestrator) GetInsight(ctx context.Context, questionID, userID int64) (*model.Insight, error) {
	if _, err := o.authorize(ctx, questionID, userID, model.RoleAsker); err != nil {
		return nil, err
	}
	in, err := o.stores.Insights().GetByQuestion(ctx, questionID)
	if err != nil {
		return nil, loadError("loading insight", err)
	}
	return in, nil
}

// GetTranscript returns the caller's own reflection log. A dialog that has not
// been opened yet reads as an empty log.
func (o *Orchestrator) GetTranscript(ctx context.Context, questionID, userID int64, role model.Role) (*model.ReflectionLog, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if _, err := o.authorize(ctx, questionID, userID, role); err != nil {
		return nil, err
	}

	log, err := o.stores.Reflections().Get(ctx, questionID, role)
	if errors.Is(err, store.ErrNotFound) {
		return &model.ReflectionLog{QuestionID: questionID, Role: role, Turns: []model.Turn{}}, nil
	}
	if err != nil {
		return nil, transientError(fmt.Errorf("loading transcript: %w", err))
	}
	return log, nil
}

// LinkPartners connects userID with the owner of inviteCode. Both user rows are
// locked in id order and updated in one transaction so a link is never one-sided.
func (o *Orchestrator) LinkPartners(ctx context.Context, userID int64, inviteCode string) (*model.User, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    &userID,
		Component: "mediator.brain.orchestrator",
	})

	inviteCode, err := common.NormalizeInviteCode(inviteCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var partner *model.User
	err = o.tx.WithTx(ctx, func(stores StoreProvider) error {
		target, err := stores.Users().GetByInviteCode(ctx, inviteCode)
		if err != nil {
			return loadError("resolving invite code", err)
		}
		if target.ID == userID {
			return fmt.Errorf("%w: cannot link to yourself", ErrInvalidInput)
		}

		first, second := userID, target.ID
		if second < first {
			first, second = second, first
		}
		locked := make(map[int64]*model.User, 2)
		for _, uid := range []int64{first, second} {
			u, err := stores.Users().GetForUpdate(ctx, uid)
			if err != nil {
				return loadError("locking user", err)
			}
			locked[uid] = u
		}

		me, them := locked[userID], locked[target.ID]
		if me.HasPartner() && *me.PartnerID == them.ID && them.HasPartner() && *them.PartnerID == me.ID {
			partner = them
			return nil
		}
		if me.HasPartner() || them.HasPartner() {
			return ErrAlreadyLinked
		}

		if err := stores.Users().SetPartner(ctx, me.ID, &them.ID); err != nil {
			return fmt.Errorf("linking user: %w", err)
		}
		if err := stores.Users().SetPartner(ctx, them.ID, &me.ID); err != nil {
			return fmt.Errorf("linking partner: %w", err)
		}
		them.PartnerID = &me.ID
		partner = them
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyLinked) || KindOf(err) != "" {
			return nil, err
		}
		return nil, transientError(err)
	}

	slog.InfoContext(ctx, "partners linked", "partner_id", partner.ID)
	return partner, nil
}

// CheckText is the server-side re-check of a client pre-check. It runs the
// same engine the dialogs use and has no side effects.
func (o *Orchestrator) CheckText(text string) (safety.Classification, *safety.Guidance) {
	c := o.engine.Classify(text)
	if !c.Flagged {
		return c, nil
	}
	g := o.engine.Guidance(c.Severity, c.Category)
	return c, &g
}

func (o *Orchestrator) authorize(ctx context.Context, questionID, userID int64, role model.Role) (*model.Question, error) {
	q, err := o.stores.Questions().GetByID(ctx, questionID)
	if err != nil {
		return nil, loadError("loading question", err)
	}
	if q.UserFor(role) != userID {
		return nil, ErrForbidden
	}
	return q, nil
}

func (o *Orchestrator) participant(ctx context.Context, questionID, userID int64) (*model.Question, error) {
	q, err := o.stores.Questions().GetByID(ctx, questionID)
	if err != nil {
		return nil, loadError("loading question", err)
	}
	if _, ok := q.ParticipantRole(userID); !ok {
		return nil, ErrForbidden
	}
	return q, nil
}
