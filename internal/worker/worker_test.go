package worker_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"safetalk.app/mediator/internal/brain"
	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/notify"
	"safetalk.app/mediator/internal/queue"
	"safetalk.app/mediator/internal/worker"
)

func ptr[T any](v T) *T { return &v }

var _ = Describe("Worker", func() {
	var (
		ctx       context.Context
		consumer  *mockConsumer
		processor *mockTaskProcessor
		w         *worker.Worker
		msg       queue.Message
	)

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
		processor = &mockTaskProcessor{}
		w = worker.New(consumer, processor, worker.Config{MaxAttempts: 3})
		msg = queue.Message{
			ID: "1-0",
			Task: queue.Task{
				TaskType:   queue.TaskTypePartnerPhaseComplete,
				QuestionID: ptr(int64(42)),
				Attempt:    1,
			},
		}
	})

	It("acks a processed message", func() {
		Expect(w.ProcessMessage(ctx, msg)).To(Succeed())
		Expect(consumer.acked).To(Equal([]string{"1-0"}))
	})

	It("does not ack a failed message", func() {
		processor.processFn = func(context.Context, queue.Task) error { return errors.New("boom") }

		Expect(w.ProcessMessage(ctx, msg)).NotTo(Succeed())
		Expect(consumer.acked).To(BeEmpty())
	})

	It("turns a panic into an error", func() {
		processor.processFn = func(context.Context, queue.Task) error { panic("nil map") }

		err := w.ProcessMessage(ctx, msg)
		Expect(err).To(MatchError(ContainSubstring("panic")))
	})

	DescribeTable("failure handling",
		func(attempt int, err error, requeued, deadLettered bool) {
			msg.Attempt = attempt
			w.HandleFailure(ctx, msg, err)

			Expect(consumer.requeued).To(HaveLen(boolToInt(requeued)))
			Expect(consumer.deadLettr).To(HaveLen(boolToInt(deadLettered)))
		},
		Entry("retryable under the limit", 1, errors.New("timeout"), true, false),
		Entry("retryable at the limit", 3, errors.New("timeout"), false, true),
		Entry("permanent", 1, &worker.PermanentError{Err: errors.New("bad task")}, false, true),
	)
})

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ = Describe("Processor", func() {
	var (
		ctx       context.Context
		tokens    *mockPushTokens
		pusher    *mockPusher
		completer *mockCompleter
		p         *worker.Processor
	)

	BeforeEach(func() {
		ctx = context.Background()
		tokens = &mockPushTokens{}
		pusher = &mockPusher{}
		completer = &mockCompleter{}
		p = worker.NewProcessor(tokens, pusher, completer)
	})

	Describe("notifications", func() {
		task := queue.Task{
			TaskType: queue.TaskTypeNotification,
			UserID:   ptr(int64(7)),
			Template: string(notify.TemplateInsightsReady),
			Title:    "Insights ready",
			Body:     "Tap to see insights.",
			Data:     map[string]string{"question_id": "42"},
		}

		It("sends to every registered device", func() {
			tokens.listByUserFn = func(_ context.Context, userID int64) ([]model.PushToken, error) {
				Expect(userID).To(Equal(int64(7)))
				return []model.PushToken{{UserID: 7, DeviceToken: "a"}, {UserID: 7, DeviceToken: "b"}}, nil
			}
			var got []string
			var note notify.Notification
			pusher.sendFn = func(_ context.Context, devices []string, n notify.Notification) (notify.PushResult, error) {
				got, note = devices, n
				return notify.PushResult{Sent: 2}, nil
			}

			Expect(p.Process(ctx, task)).To(Succeed())
			Expect(got).To(Equal([]string{"a", "b"}))
			Expect(note.Title).To(Equal("Insights ready"))
			Expect(note.Data).To(HaveKeyWithValue("question_id", "42"))
		})

		It("drops notifications for users without devices", func() {
			Expect(p.Process(ctx, task)).To(Succeed())
			Expect(pusher.calls).To(Equal(0))
		})

		It("retries when every device failed", func() {
			tokens.listByUserFn = func(context.Context, int64) ([]model.PushToken, error) {
				return []model.PushToken{{DeviceToken: "a"}}, nil
			}
			pusher.sendFn = func(context.Context, []string, notify.Notification) (notify.PushResult, error) {
				return notify.PushResult{Failed: 1}, nil
			}

			err := p.Process(ctx, task)
			Expect(err).To(HaveOccurred())
			var pe *worker.PermanentError
			Expect(errors.As(err, &pe)).To(BeFalse())
		})

		It("accepts partial delivery", func() {
			tokens.listByUserFn = func(context.Context, int64) ([]model.PushToken, error) {
				return []model.PushToken{{DeviceToken: "a"}, {DeviceToken: "b"}}, nil
			}
			pusher.sendFn = func(context.Context, []string, notify.Notification) (notify.PushResult, error) {
				return notify.PushResult{Sent: 1, Failed: 1}, nil
			}

			Expect(p.Process(ctx, task)).To(Succeed())
		})
	})

	Describe("partner phase completion", func() {
		task := queue.Task{TaskType: queue.TaskTypePartnerPhaseComplete, QuestionID: ptr(int64(42))}

		It("completes the phase on behalf of the scheduler", func() {
			var gotUser *int64 = ptr(int64(-1))
			completer.completeFn = func(_ context.Context, qid int64, userID *int64) (*model.Insight, error) {
				Expect(qid).To(Equal(int64(42)))
				gotUser = userID
				return &model.Insight{ID: 9}, nil
			}

			Expect(p.Process(ctx, task)).To(Succeed())
			Expect(gotUser).To(BeNil())
		})

		It("acknowledges a question the flag already closed", func() {
			completer.completeFn = func(context.Context, int64, *int64) (*model.Insight, error) {
				return nil, &brain.Error{Kind: brain.KindInvariant, Err: brain.ErrFlagged}
			}
			Expect(p.Process(ctx, task)).To(Succeed())
		})

		It("returns retryable failures for another attempt", func() {
			completer.completeFn = func(context.Context, int64, *int64) (*model.Insight, error) {
				return nil, &brain.Error{Kind: brain.KindTransient, Err: context.DeadlineExceeded}
			}
			err := p.Process(ctx, task)
			Expect(err).To(HaveOccurred())
			Expect(brain.IsRetryable(err)).To(BeTrue())
		})

		It("gives up on unexpected failures", func() {
			completer.completeFn = func(context.Context, int64, *int64) (*model.Insight, error) {
				return nil, fmt.Errorf("unexpected")
			}
			var pe *worker.PermanentError
			Expect(errors.As(p.Process(ctx, task), &pe)).To(BeTrue())
		})
	})

	It("rejects unknown task types permanently", func() {
		var pe *worker.PermanentError
		Expect(errors.As(p.Process(ctx, queue.Task{TaskType: "mystery"}), &pe)).To(BeTrue())
	})
})
