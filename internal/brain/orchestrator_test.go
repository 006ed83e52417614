package brain_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"safetalk.app/mediator/common/llm"
	"safetalk.app/mediator/core/config"
	"safetalk.app/mediator/internal/brain"
	"safetalk.app/mediator/internal/lock"
	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/notify"
	"safetalk.app/mediator/internal/queue"
	"safetalk.app/mediator/internal/safety"
)

const (
	askerID   int64 = 101
	partnerID int64 = 202
	outsider  int64 = 303
)

type harness struct {
	db         *memDB
	tx         *mockTxRunner
	clarify    *mockLLM
	reflection *mockLLM
	insight    *mockLLM
	notifier   *mockNotifier
	scheduler  *mockScheduler
	escalator  *brain.Escalator
	orch       *brain.Orchestrator
}

func defaultDialogConfig() config.DialogConfig {
	return config.DialogConfig{
		AskerExchanges:    3,
		PartnerCompletion: config.PartnerCompletionSignal,
		PartnerDelay:      5 * time.Second,
		PartnerExchanges:  2,
		LLMTimeout:        time.Second,
		LockTTL:           time.Minute,
	}
}

func newHarness(cfg config.DialogConfig) *harness {
	engine, err := safety.NewEngine()
	Expect(err).NotTo(HaveOccurred())

	h := &harness{
		db:         newMemDB(),
		clarify:    &mockLLM{},
		reflection: &mockLLM{},
		insight: &mockLLM{completeFn: func(context.Context, llm.CompletionRequest) (*llm.Completion, error) {
			return &llm.Completion{Content: validInsight}, nil
		}},
		notifier:  &mockNotifier{},
		scheduler: &mockScheduler{},
	}
	h.tx = &mockTxRunner{db: h.db}
	stores := memStores{db: h.db}

	p1, p2 := partnerID, askerID
	h.db.addUser(&model.User{ID: askerID, FullName: "Sam", InviteCode: "SAM-1", PartnerID: &p1})
	h.db.addUser(&model.User{ID: partnerID, FullName: "Alex", InviteCode: "ALEX-1", PartnerID: &p2})
	h.db.addUser(&model.User{ID: outsider, FullName: "Robin", InviteCode: "ROBIN-1"})

	h.escalator = brain.NewEscalator(stores, h.tx, engine)
	driver := brain.NewDialogDriver(stores, h.tx, engine, h.escalator, lock.NewMemoryLocker(),
		brain.ModelSettings{Client: h.clarify, MaxTokens: 300, Temperature: 0.7},
		brain.ModelSettings{Client: h.reflection, MaxTokens: 400, Temperature: 0.8},
		cfg)
	synth := brain.NewSynthesizer(stores, h.tx,
		brain.ModelSettings{Client: h.insight, MaxTokens: 600, Temperature: 0.7},
		cfg.LLMTimeout, h.notifier)
	h.orch = brain.NewOrchestrator(stores, h.tx, engine, driver, h.escalator, synth, h.notifier, h.scheduler, cfg)
	return h
}

func text(s string) *string { return &s }

func (h *harness) submit(question string) *model.Question {
	res, err := h.orch.SubmitQuestion(context.Background(), askerID, question)
	Expect(err).NotTo(HaveOccurred())
	Expect(res.Escalated).To(BeFalse())
	return res.Question
}

func (h *harness) advance(qid, userID int64, role model.Role, msg *string) *brain.AdvanceResult {
	res, err := h.orch.AdvanceDialog(context.Background(), brain.AdvanceRequest{
		QuestionID: qid, UserID: userID, Role: role, Text: msg,
	})
	Expect(err).NotTo(HaveOccurred())
	return res
}

// toPartnerPhase runs the asker dialog to completion.
func (h *harness) toPartnerPhase() *model.Question {
	q := h.submit("Why is he pulling away?")
	h.advance(q.ID, askerID, model.RoleAsker, nil)
	h.advance(q.ID, askerID, model.RoleAsker, text("He comes home late and barely talks."))
	h.advance(q.ID, askerID, model.RoleAsker, text("I worry he is unhappy with us."))
	res := h.advance(q.ID, askerID, model.RoleAsker, text("I just want to understand him."))
	Expect(res.PhaseComplete).To(BeTrue())
	return q
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx context.Context
		h   *harness
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = newHarness(defaultDialogConfig())
	})

	Describe("SubmitQuestion", func() {
		It("opens clarification and notifies the partner", func() {
			q := h.submit("Why is he pulling away?")

			Expect(q.Status).To(Equal(model.QuestionStatusClarifying))
			Expect(q.PartnerID).To(Equal(partnerID))
			Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusClarifying))
			Expect(h.notifier.templates()).To(Equal([]notify.Template{notify.TemplateNewQuestion}))
			Expect(h.notifier.sent[0].UserID).To(Equal(partnerID))
			Expect(h.notifier.sent[0].Title).To(Equal("Sam asked about you"))
		})

		It("escalates a flagged question without telling the partner", func() {
			res, err := h.orch.SubmitQuestion(ctx, askerID, "Why does he hit me when he is angry?")

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Escalated).To(BeTrue())
			Expect(res.Guidance).NotTo(BeNil())
			Expect(res.Guidance.Level).To(Equal(safety.GuidanceImmediate))
			Expect(h.db.question(res.Question.ID).Status).To(Equal(model.QuestionStatusRedFlag))
			Expect(h.db.flags(res.Question.ID)).To(HaveLen(1))
			Expect(h.notifier.templates()).To(BeEmpty())
		})

		It("stores a flagged question, its event and the red_flag status together", func() {
			res, err := h.orch.SubmitQuestion(ctx, askerID, "I want to kill myself")

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Guidance.Level).To(Equal(safety.GuidanceCrisis))
			stored := h.db.question(res.Question.ID)
			Expect(stored.Status).To(Equal(model.QuestionStatusRedFlag))
			Expect(stored.RedFlagDetected).To(BeTrue())
			flags := h.db.flags(res.Question.ID)
			Expect(flags).To(HaveLen(1))
			Expect(flags[0].WhoTriggered).To(Equal(model.RoleAsker))
		})

		It("stores nothing when a flagged submission cannot be recorded, and still returns guidance", func() {
			h.db.createRedFlagFn = func(*model.RedFlagEvent) error { return errors.New("connection reset") }

			res, err := h.orch.SubmitQuestion(ctx, askerID, "Why does he hit me when he is angry?")

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Escalated).To(BeTrue())
			Expect(res.Guidance).NotTo(BeNil())
			Expect(res.Guidance.Level).To(Equal(safety.GuidanceImmediate))
			Expect(res.Question).To(BeNil())
			Expect(h.db.questionCount()).To(BeZero())
			Expect(h.notifier.templates()).To(BeEmpty())
		})

		It("stores nothing when the flagged submit transaction fails outright", func() {
			h.tx.withTxFn = func(context.Context, func(brain.StoreProvider) error) error {
				return errors.New("connection reset")
			}

			res, err := h.orch.SubmitQuestion(ctx, askerID, "Why does he hit me when he is angry?")

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Escalated).To(BeTrue())
			Expect(res.Guidance).NotTo(BeNil())
			Expect(h.db.questionCount()).To(BeZero())
		})

		It("requires a linked partner", func() {
			_, err := h.orch.SubmitQuestion(ctx, outsider, "Why is he pulling away?")
			Expect(err).To(MatchError(brain.ErrNoPartner))
		})

		It("rejects empty text", func() {
			_, err := h.orch.SubmitQuestion(ctx, askerID, "   ")
			Expect(errors.Is(err, brain.ErrInvalidInput)).To(BeTrue())
		})
	})

	Describe("AdvanceDialog", func() {
		It("completes clarification after three exchanges", func() {
			q := h.submit("Why is he pulling away?")

			opening := h.advance(q.ID, askerID, model.RoleAsker, nil)
			Expect(opening.Exchanges).To(Equal(0))
			Expect(opening.PhaseComplete).To(BeFalse())
			Expect(h.clarify.calls()).To(Equal(1))
			Expect(h.clarify.last().Messages).To(HaveLen(1))
			Expect(h.clarify.last().Messages[0].Content).To(ContainSubstring("Why is he pulling away?"))

			first := h.advance(q.ID, askerID, model.RoleAsker, text("He comes home late."))
			Expect(first.Exchanges).To(Equal(1))
			second := h.advance(q.ID, askerID, model.RoleAsker, text("He seems tired all the time."))
			Expect(second.PhaseComplete).To(BeFalse())
			Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusClarifying))

			third := h.advance(q.ID, askerID, model.RoleAsker, text("I want to help him."))
			Expect(third.PhaseComplete).To(BeTrue())
			Expect(third.Exchanges).To(Equal(3))
			Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusPartnerReflecting))

			log := h.db.log(q.ID, model.RoleAsker)
			Expect(log.Turns).To(HaveLen(7))
			for i, t := range log.Turns {
				Expect(t.Seq).To(Equal(int32(i + 1)))
			}
			Expect(h.clarify.last().Messages).To(HaveLen(7))
		})

		It("prepends the opening line only to the first assistant turn", func() {
			q := h.submit("Why is he pulling away?")

			opening := h.advance(q.ID, askerID, model.RoleAsker, nil)
			next := h.advance(q.ID, askerID, model.RoleAsker, text("He seems distant."))

			Expect(opening.AssistantText).To(HaveSuffix("Reply 1. What else is on your mind?"))
			Expect(opening.AssistantText).NotTo(HavePrefix("Reply"))
			Expect(next.AssistantText).To(Equal("Reply 2. What else is on your mind?"))
		})

		It("replays the opening instead of calling the model twice", func() {
			q := h.submit("Why is he pulling away?")

			first := h.advance(q.ID, askerID, model.RoleAsker, nil)
			again := h.advance(q.ID, askerID, model.RoleAsker, nil)

			Expect(again.Replayed).To(BeTrue())
			Expect(again.AssistantText).To(Equal(first.AssistantText))
			Expect(h.clarify.calls()).To(Equal(1))
		})

		It("never sends a flagged turn to the model or the log", func() {
			q := h.submit("Why is he pulling away?")
			h.advance(q.ID, askerID, model.RoleAsker, nil)
			callsBefore := h.clarify.calls()

			res := h.advance(q.ID, askerID, model.RoleAsker, text("Last week he threatened to kill me"))

			Expect(res.Escalated).To(BeTrue())
			Expect(res.Guidance).NotTo(BeNil())
			Expect(h.clarify.calls()).To(Equal(callsBefore))
			for _, t := range h.db.log(q.ID, model.RoleAsker).Turns {
				Expect(t.Text).NotTo(ContainSubstring("kill"))
			}

			flags := h.db.flags(q.ID)
			Expect(flags).To(HaveLen(1))
			Expect(flags[0].WhoTriggered).To(Equal(model.RoleAsker))
			Expect(flags[0].Severity).To(Equal(model.SeverityHigh))
			Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusRedFlag))
			Expect(h.db.question(q.ID).RedFlagDetected).To(BeTrue())
		})

		It("screens the question text again before it seeds a prompt", func() {
			stores := memStores{db: h.db}
			q := &model.Question{
				ID: 9001, AskerID: askerID, PartnerID: partnerID,
				Text:   "Why does he hit me when he is angry?",
				Status: model.QuestionStatusClarifying,
			}
			Expect(stores.Questions().Create(ctx, q)).To(Succeed())

			res := h.advance(q.ID, askerID, model.RoleAsker, nil)

			Expect(res.Escalated).To(BeTrue())
			Expect(res.Guidance).NotTo(BeNil())
			Expect(h.clarify.calls()).To(BeZero())
			Expect(h.db.log(q.ID, model.RoleAsker)).To(BeNil())
			flags := h.db.flags(q.ID)
			Expect(flags).To(HaveLen(1))
			Expect(flags[0].WhoTriggered).To(Equal(model.RoleAsker))
			Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusRedFlag))
		})

		It("keeps an unscreened question text out of the partner prompt", func() {
			stores := memStores{db: h.db}
			q := &model.Question{
				ID: 9002, AskerID: askerID, PartnerID: partnerID,
				Text:   "Why does he threaten to leave?",
				Status: model.QuestionStatusPartnerReflecting,
			}
			Expect(stores.Questions().Create(ctx, q)).To(Succeed())

			res := h.advance(q.ID, partnerID, model.RolePartner, nil)

			Expect(res.Escalated).To(BeTrue())
			Expect(h.reflection.calls()).To(BeZero())
			Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusRedFlag))
		})

		It("refuses to append a reply built on history that moved on", func() {
			q := h.submit("Why is he pulling away?")
			h.advance(q.ID, askerID, model.RoleAsker, nil)
			logID := h.db.log(q.ID, model.RoleAsker).ID

			h.clarify.completeFn = func(ctx context.Context, _ llm.CompletionRequest) (*llm.Completion, error) {
				_, err := memStores{db: h.db}.Reflections().AppendTurns(ctx, logID,
					model.Turn{Speaker: model.SpeakerHuman, Text: "He works late."},
					model.Turn{Speaker: model.SpeakerAssistant, Text: "What happens then?"})
				Expect(err).NotTo(HaveOccurred())
				return &llm.Completion{Content: "Tell me more."}, nil
			}
			_, err := h.orch.AdvanceDialog(ctx, brain.AdvanceRequest{
				QuestionID: q.ID, UserID: askerID, Role: model.RoleAsker, Text: text("He seems distant."),
			})

			Expect(errors.Is(err, brain.ErrStaleHistory)).To(BeTrue())
			Expect(brain.KindOf(err)).To(Equal(brain.KindTransient))
			turns := h.db.log(q.ID, model.RoleAsker).Turns
			Expect(turns).To(HaveLen(3))
			Expect(turns[2].Text).To(Equal("What happens then?"))
		})

		It("keeps returning guidance once the question is red_flag", func() {
			q := h.submit("Why is he pulling away?")
			h.advance(q.ID, askerID, model.RoleAsker, text("he won't let me see my friends"))
			callsBefore := h.clarify.calls()

			res := h.advance(q.ID, askerID, model.RoleAsker, text("Anyway, he is quiet lately."))

			Expect(res.Escalated).To(BeTrue())
			Expect(res.Guidance).NotTo(BeNil())
			Expect(h.clarify.calls()).To(Equal(callsBefore))
			Expect(h.db.flags(q.ID)).To(HaveLen(1))
		})

		It("leaves the log untouched when the model fails, so a retry sends the same state", func() {
			q := h.submit("Why is he pulling away?")
			h.advance(q.ID, askerID, model.RoleAsker, nil)

			h.clarify.completeFn = func(context.Context, llm.CompletionRequest) (*llm.Completion, error) {
				return nil, context.DeadlineExceeded
			}
			_, err := h.orch.AdvanceDialog(ctx, brain.AdvanceRequest{
				QuestionID: q.ID, UserID: askerID, Role: model.RoleAsker, Text: text("He seems distant."),
			})

			Expect(err).To(HaveOccurred())
			Expect(brain.IsRetryable(err)).To(BeTrue())
			Expect(brain.KindOf(err)).To(Equal(brain.KindTransient))
			Expect(h.db.log(q.ID, model.RoleAsker).Turns).To(HaveLen(1))
			failed := h.clarify.last()

			h.clarify.completeFn = nil
			res := h.advance(q.ID, askerID, model.RoleAsker, text("He seems distant."))
			Expect(res.Exchanges).To(Equal(1))
			Expect(h.clarify.last().Messages).To(Equal(failed.Messages))
		})

		It("times out a slow model call as a transient failure", func() {
			cfg := defaultDialogConfig()
			cfg.LLMTimeout = 20 * time.Millisecond
			h = newHarness(cfg)
			q := h.submit("Why is he pulling away?")

			h.clarify.completeFn = func(ctx context.Context, _ llm.CompletionRequest) (*llm.Completion, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			_, err := h.orch.AdvanceDialog(ctx, brain.AdvanceRequest{QuestionID: q.ID, UserID: askerID, Role: model.RoleAsker})

			Expect(brain.KindOf(err)).To(Equal(brain.KindTransient))
			Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusClarifying))
			Expect(h.db.flags(q.ID)).To(BeEmpty())
		})

		It("rejects callers that do not hold the role", func() {
			q := h.submit("Why is he pulling away?")

			_, err := h.orch.AdvanceDialog(ctx, brain.AdvanceRequest{QuestionID: q.ID, UserID: partnerID, Role: model.RoleAsker})
			Expect(err).To(MatchError(brain.ErrForbidden))

			_, err = h.orch.AdvanceDialog(ctx, brain.AdvanceRequest{QuestionID: q.ID, UserID: outsider, Role: model.RolePartner})
			Expect(err).To(MatchError(brain.ErrForbidden))
		})

		It("refuses the partner dialog before clarification is done", func() {
			q := h.submit("Why is he pulling away?")

			_, err := h.orch.AdvanceDialog(ctx, brain.AdvanceRequest{QuestionID: q.ID, UserID: partnerID, Role: model.RolePartner})

			Expect(brain.KindOf(err)).To(Equal(brain.KindInvariant))
			Expect(errors.Is(err, brain.ErrWrongPhase)).To(BeTrue())
			Expect(h.reflection.calls()).To(Equal(0))
		})

		It("serializes concurrent turns for one role", func() {
			q := h.submit("Why is he pulling away?")
			h.advance(q.ID, askerID, model.RoleAsker, nil)

			var wg sync.WaitGroup
			for _, msg := range []string{"He is distant.", "He works late."} {
				wg.Add(1)
				go func(m string) {
					defer GinkgoRecover()
					defer wg.Done()
					h.advance(q.ID, askerID, model.RoleAsker, text(m))
				}(msg)
			}
			wg.Wait()

			log := h.db.log(q.ID, model.RoleAsker)
			Expect(log.Turns).To(HaveLen(5))
			speakers := make([]model.Speaker, len(log.Turns))
			for i, t := range log.Turns {
				speakers[i] = t.Speaker
			}
			Expect(speakers).To(Equal([]model.Speaker{
				model.SpeakerAssistant,
				model.SpeakerHuman, model.SpeakerAssistant,
				model.SpeakerHuman, model.SpeakerAssistant,
			}))
		})
	})

	Describe("partner phase", func() {
		It("notifies the asker on the partner's first answered turn", func() {
			q := h.toPartnerPhase()

			h.advance(q.ID, partnerID, model.RolePartner, nil)
			h.advance(q.ID, partnerID, model.RolePartner, text("Work has been brutal lately."))
			h.advance(q.ID, partnerID, model.RolePartner, text("I don't want to bring it home."))

			Expect(h.notifier.templates()).To(Equal([]notify.Template{
				notify.TemplateNewQuestion,
				notify.TemplatePartnerResponse,
			}))
			Expect(h.notifier.sent[1].UserID).To(Equal(askerID))
			Expect(h.scheduler.tasks).To(BeEmpty())
		})

		It("schedules completion after the first partner turn in delay mode", func() {
			cfg := defaultDialogConfig()
			cfg.PartnerCompletion = config.PartnerCompletionDelay
			h = newHarness(cfg)
			q := h.toPartnerPhase()

			before := time.Now()
			h.advance(q.ID, partnerID, model.RolePartner, text("Work has been brutal lately."))

			Expect(h.scheduler.tasks).To(HaveLen(1))
			task := h.scheduler.tasks[0]
			Expect(task.task.TaskType).To(Equal(queue.TaskTypePartnerPhaseComplete))
			Expect(*task.task.QuestionID).To(Equal(q.ID))
			Expect(task.at).To(BeTemporally(">=", before.Add(5*time.Second)))
		})

		It("schedules completion once the exchange threshold is met in exchanges mode", func() {
			cfg := defaultDialogConfig()
			cfg.PartnerCompletion = config.PartnerCompletionExchanges
			h = newHarness(cfg)
			q := h.toPartnerPhase()

			first := h.advance(q.ID, partnerID, model.RolePartner, text("Work has been brutal lately."))
			Expect(first.PhaseComplete).To(BeFalse())
			Expect(h.scheduler.tasks).To(BeEmpty())

			second := h.advance(q.ID, partnerID, model.RolePartner, text("I'm tired, not unhappy."))
			Expect(second.PhaseComplete).To(BeTrue())
			Expect(h.scheduler.tasks).To(HaveLen(1))
		})

		It("escalates a controlling partner turn and never creates an insight", func() {
			q := h.toPartnerPhase()
			h.advance(q.ID, partnerID, model.RolePartner, text("Things are fine."))

			res := h.advance(q.ID, partnerID, model.RolePartner, text("Honestly, he won't let me see my friends"))

			Expect(res.Escalated).To(BeTrue())
			flags := h.db.flags(q.ID)
			Expect(flags).To(HaveLen(1))
			Expect(flags[0].Category).To(Equal(model.CategoryControl))
			Expect(flags[0].WhoTriggered).To(Equal(model.RolePartner))
			Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusRedFlag))

			_, err := h.orch.CompletePartnerPhase(ctx, q.ID, nil)
			Expect(brain.KindOf(err)).To(Equal(brain.KindInvariant))
			Expect(h.insight.calls()).To(Equal(0))
			Expect(h.db.insightCount()).To(Equal(0))
		})
	})

	Describe("CompletePartnerPhase", func() {
		var q *model.Question

		BeforeEach(func() {
			q = h.toPartnerPhase()
			h.advance(q.ID, partnerID, model.RolePartner, nil)
			h.advance(q.ID, partnerID, model.RolePartner, text("Work has been brutal lately."))
		})

		It("creates one insight, answers the question and notifies the asker", func() {
			in, err := h.orch.CompletePartnerPhase(ctx, q.ID, &[]int64{partnerID}[0])

			Expect(err).NotTo(HaveOccurred())
			Expect(in.EmotionalSummary).To(Equal("He feels stretched thin at work."))
			Expect(in.ContextualSummary).To(Equal("A new manager and longer hours."))
			Expect(in.SuggestedAction).To(HavePrefix("Offer a quiet evening"))
			Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusAnswered))
			Expect(h.db.insightCount()).To(Equal(1))

			prompt := h.insight.last().Messages[0].Content
			Expect(prompt).To(ContainSubstring("Why is he pulling away?"))
			Expect(prompt).To(ContainSubstring("Work has been brutal lately."))

			templates := h.notifier.templates()
			Expect(templates[len(templates)-1]).To(Equal(notify.TemplateInsightsReady))
		})

		It("is a no-op the second time", func() {
			first, err := h.orch.CompletePartnerPhase(ctx, q.ID, nil)
			Expect(err).NotTo(HaveOccurred())

			second, err := h.orch.CompletePartnerPhase(ctx, q.ID, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ID).To(Equal(first.ID))
			Expect(h.insight.calls()).To(Equal(1))
		})

		It("persists exactly one insight under concurrent calls", func() {
			release := make(chan struct{})
			h.insight.completeFn = func(context.Context, llm.CompletionRequest) (*llm.Completion, error) {
				<-release
				return &llm.Completion{Content: validInsight}, nil
			}

			results := make(chan error, 2)
			for i := 0; i < 2; i++ {
				go func() {
					_, err := h.orch.CompletePartnerPhase(ctx, q.ID, nil)
					results <- err
				}()
			}
			Eventually(h.insight.calls).Should(BeNumerically(">=", 1))
			time.Sleep(20 * time.Millisecond)
			close(release)

			for i := 0; i < 2; i++ {
				err := <-results
				if err != nil {
					Expect(brain.KindOf(err)).To(Equal(brain.KindInvariant))
				}
			}
			Expect(h.db.insightCount()).To(Equal(1))
			Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusAnswered))
		})

		It("lets a flag raised during the model call win", func() {
			h.insight.completeFn = func(ctx context.Context, _ llm.CompletionRequest) (*llm.Completion, error) {
				h.escalator.Escalate(ctx, brain.EscalationInput{
					QuestionID:    q.ID,
					Role:          model.RolePartner,
					TriggerPhrase: "scared",
					Severity:      model.SeverityMedium,
					Category:      model.CategoryEmotional,
				})
				return &llm.Completion{Content: validInsight}, nil
			}

			_, err := h.orch.CompletePartnerPhase(ctx, q.ID, nil)

			Expect(brain.KindOf(err)).To(Equal(brain.KindInvariant))
			Expect(h.db.insightCount()).To(Equal(0))
			Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusRedFlag))
		})

		It("fails without persisting when the output has no labeled sections", func() {
			h.insight.completeFn = func(context.Context, llm.CompletionRequest) (*llm.Completion, error) {
				return &llm.Completion{Content: "Your partner seems to be under a lot of stress."}, nil
			}

			_, err := h.orch.CompletePartnerPhase(ctx, q.ID, nil)

			Expect(brain.KindOf(err)).To(Equal(brain.KindMalformedOutput))
			Expect(brain.IsRetryable(err)).To(BeTrue())
			Expect(h.db.insightCount()).To(Equal(0))
			Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusPartnerReflecting))
		})

		It("rejects a signal from anyone but the partner", func() {
			_, err := h.orch.CompletePartnerPhase(ctx, q.ID, &[]int64{askerID}[0])
			Expect(err).To(MatchError(brain.ErrForbidden))
		})
	})

	It("refuses to synthesize without a partner reflection", func() {
		q := h.toPartnerPhase()

		_, err := h.orch.CompletePartnerPhase(ctx, q.ID, nil)

		Expect(brain.KindOf(err)).To(Equal(brain.KindInvariant))
		Expect(errors.Is(err, brain.ErrMissingLog)).To(BeTrue())
		Expect(h.insight.calls()).To(Equal(0))
	})

	Describe("DeclineQuestion", func() {
		It("closes the question for good", func() {
			q := h.submit("Why is he pulling away?")

			declined, err := h.orch.DeclineQuestion(ctx, q.ID, partnerID)
			Expect(err).NotTo(HaveOccurred())
			Expect(declined.Status).To(Equal(model.QuestionStatusRejected))

			_, err = h.orch.AdvanceDialog(ctx, brain.AdvanceRequest{QuestionID: q.ID, UserID: askerID, Role: model.RoleAsker})
			Expect(errors.Is(err, brain.ErrQuestionClosed)).To(BeTrue())

			again, err := h.orch.DeclineQuestion(ctx, q.ID, partnerID)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Status).To(Equal(model.QuestionStatusRejected))
		})
	})

	Describe("GetStatus", func() {
		It("repairs a stale status from the insight record", func() {
			q := h.toPartnerPhase()
			h.advance(q.ID, partnerID, model.RolePartner, text("Work has been brutal lately."))
			_, err := h.orch.CompletePartnerPhase(ctx, q.ID, nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = memStores{db: h.db}.Questions().SetStatus(ctx, q.ID, model.QuestionStatusPartnerReflecting)
			Expect(err).NotTo(HaveOccurred())

			view, err := h.orch.GetStatus(ctx, q.ID, askerID)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Status).To(Equal(model.QuestionStatusAnswered))
			Expect(view.AskerExchanges).To(Equal(3))
			Expect(view.PartnerExchanges).To(Equal(1))
			Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusAnswered))
		})

		It("reports red_flag with guidance", func() {
			res, err := h.orch.SubmitQuestion(ctx, askerID, "I want to kill myself")
			Expect(err).NotTo(HaveOccurred())

			view, err := h.orch.GetStatus(ctx, res.Question.ID, partnerID)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Status).To(Equal(model.QuestionStatusRedFlag))
			Expect(view.RedFlagDetected).To(BeTrue())
			Expect(view.Guidance).NotTo(BeNil())
		})

		It("hides questions from outsiders", func() {
			q := h.submit("Why is he pulling away?")
			_, err := h.orch.GetStatus(ctx, q.ID, outsider)
			Expect(err).To(MatchError(brain.ErrForbidden))
		})
	})

	Describe("transcripts and insights", func() {
		It("returns only the caller's own log", func() {
			q := h.submit("Why is he pulling away?")
			h.advance(q.ID, askerID, model.RoleAsker, nil)

			log, err := h.orch.GetTranscript(ctx, q.ID, askerID, model.RoleAsker)
			Expect(err).NotTo(HaveOccurred())
			Expect(log.Turns).To(HaveLen(1))

			_, err = h.orch.GetTranscript(ctx, q.ID, partnerID, model.RoleAsker)
			Expect(err).To(MatchError(brain.ErrForbidden))

			empty, err := h.orch.GetTranscript(ctx, q.ID, partnerID, model.RolePartner)
			Expect(err).NotTo(HaveOccurred())
			Expect(empty.Turns).To(BeEmpty())
		})

		It("reports a missing insight as not found", func() {
			q := h.submit("Why is he pulling away?")
			_, err := h.orch.GetInsight(ctx, q.ID, askerID)
			Expect(errors.Is(err, brain.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("LinkPartners", func() {
		It("links both users", func() {
			h.db.addUser(&model.User{ID: 404, FullName: "Jo", InviteCode: "JO-1"})

			partner, err := h.orch.LinkPartners(ctx, outsider, " jo 1")
			Expect(err).NotTo(HaveOccurred())
			Expect(partner.ID).To(Equal(int64(404)))

			me, _ := memStores{db: h.db}.Users().GetByID(ctx, outsider)
			them, _ := memStores{db: h.db}.Users().GetByID(ctx, 404)
			Expect(*me.PartnerID).To(Equal(int64(404)))
			Expect(*them.PartnerID).To(Equal(outsider))
		})

		It("refuses self links and users already taken", func() {
			_, err := h.orch.LinkPartners(ctx, outsider, "ROBIN-1")
			Expect(errors.Is(err, brain.ErrInvalidInput)).To(BeTrue())

			_, err = h.orch.LinkPartners(ctx, outsider, "SAM-1")
			Expect(err).To(MatchError(brain.ErrAlreadyLinked))
		})

		It("rejects a blank code before touching the store", func() {
			_, err := h.orch.LinkPartners(ctx, outsider, " -- ")
			Expect(errors.Is(err, brain.ErrInvalidInput)).To(BeTrue())
		})

		It("is idempotent for an existing pair", func() {
			partner, err := h.orch.LinkPartners(ctx, askerID, "ALEX-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(partner.ID).To(Equal(partnerID))
		})
	})
})

var _ = Describe("Escalator", func() {
	It("writes the event and the status separately when the transaction fails", func() {
		h := newHarness(defaultDialogConfig())
		q := h.submit("Why is he pulling away?")
		h.tx.withTxFn = func(context.Context, func(brain.StoreProvider) error) error {
			return errors.New("connection reset")
		}

		g := h.escalator.Escalate(context.Background(), brain.EscalationInput{
			QuestionID:    q.ID,
			Role:          model.RoleAsker,
			TriggerPhrase: "suicide",
			Severity:      model.SeverityHigh,
			Category:      model.CategoryDistress,
		})

		Expect(g.Level).To(Equal(safety.GuidanceCrisis))
		Expect(h.db.flags(q.ID)).To(HaveLen(1))
		Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusRedFlag))
	})

	It("returns guidance even when nothing can be recorded", func() {
		h := newHarness(defaultDialogConfig())
		q := h.submit("Why is he pulling away?")
		h.tx.withTxFn = func(context.Context, func(brain.StoreProvider) error) error {
			return errors.New("connection reset")
		}
		h.db.createRedFlagFn = func(*model.RedFlagEvent) error { return errors.New("connection reset") }

		g := h.escalator.Escalate(context.Background(), brain.EscalationInput{
			QuestionID: q.ID, Role: model.RoleAsker, TriggerPhrase: "worthless",
			Severity: model.SeverityMedium, Category: model.CategoryEmotional,
		})

		Expect(g.Level).To(Equal(safety.GuidanceSupport))
		Expect(strings.TrimSpace(g.Title)).NotTo(BeEmpty())
		Expect(h.db.flags(q.ID)).To(BeEmpty())
		Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusRedFlag))
	})

	It("skips the fallback writes for a question that is already answered", func() {
		h := newHarness(defaultDialogConfig())
		q := h.submit("Why is he pulling away?")
		_, err := memStores{db: h.db}.Questions().SetStatus(context.Background(), q.ID, model.QuestionStatusAnswered)
		Expect(err).NotTo(HaveOccurred())
		h.tx.withTxFn = func(context.Context, func(brain.StoreProvider) error) error {
			return errors.New("connection reset")
		}

		g := h.escalator.Escalate(context.Background(), brain.EscalationInput{
			QuestionID: q.ID, Role: model.RolePartner, TriggerPhrase: "hit",
			Severity: model.SeverityHigh, Category: model.CategoryPhysical,
		})

		Expect(g.Level).To(Equal(safety.GuidanceImmediate))
		Expect(h.db.flags(q.ID)).To(BeEmpty())
		Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusAnswered))
	})

	It("records nothing for a question that is already answered", func() {
		h := newHarness(defaultDialogConfig())
		q := h.submit("Why is he pulling away?")
		_, err := memStores{db: h.db}.Questions().SetStatus(context.Background(), q.ID, model.QuestionStatusAnswered)
		Expect(err).NotTo(HaveOccurred())

		h.escalator.Escalate(context.Background(), brain.EscalationInput{
			QuestionID: q.ID, Role: model.RolePartner, TriggerPhrase: "hit",
			Severity: model.SeverityHigh, Category: model.CategoryPhysical,
		})

		Expect(h.db.flags(q.ID)).To(BeEmpty())
		Expect(h.db.question(q.ID).Status).To(Equal(model.QuestionStatusAnswered))
	})
})
