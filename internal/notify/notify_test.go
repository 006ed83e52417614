package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"safetalk.app/mediator/internal/notify"
	"safetalk.app/mediator/internal/queue"
)

type mockProducer struct {
	enqueueFn func(ctx context.Context, task queue.Task) error
	tasks     []queue.Task
}

func (m *mockProducer) Enqueue(ctx context.Context, task queue.Task) error {
	m.tasks = append(m.tasks, task)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, task)
	}
	return nil
}

func (m *mockProducer) Close() error { return nil }

var _ = Describe("QueueNotifier", func() {
	It("enqueues a notification task", func() {
		producer := &mockProducer{}
		n := notify.NewQueueNotifier(producer)

		n.Notify(context.Background(), notify.NewQuestion(22, "Sam", 7))

		Expect(producer.tasks).To(HaveLen(1))
		task := producer.tasks[0]
		Expect(task.TaskType).To(Equal(queue.TaskTypeNotification))
		Expect(*task.UserID).To(Equal(int64(22)))
		Expect(task.Title).To(Equal("Sam asked about you"))
		Expect(task.Template).To(Equal("new_question"))
		Expect(task.Data).To(HaveKeyWithValue("question_id", "7"))
	})

	It("swallows enqueue failures", func() {
		producer := &mockProducer{enqueueFn: func(context.Context, queue.Task) error {
			return errors.New("redis down")
		}}
		n := notify.NewQueueNotifier(producer)

		Expect(func() {
			n.Notify(context.Background(), notify.InsightsReady(1, "", 7))
		}).NotTo(Panic())
		Expect(producer.tasks).To(HaveLen(1))
	})
})

var _ = Describe("Templates", func() {
	It("falls back to a generic name", func() {
		n := notify.InsightsReady(1, "", 3)
		Expect(n.Body).To(ContainSubstring("Your partner"))
		Expect(n.Template).To(Equal(notify.TemplateInsightsReady))
	})

	It("addresses partner responses to the asker", func() {
		n := notify.PartnerResponse(1, "Alex", 3)
		Expect(n.UserID).To(Equal(int64(1)))
		Expect(n.Title).To(Equal("Alex responded"))
	})
})

var _ = Describe("PushClient", func() {
	var (
		server   *httptest.Server
		mu       sync.Mutex
		received []map[string]any
		authSeen []string
	)

	BeforeEach(func() {
		received = nil
		authSeen = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)

			mu.Lock()
			received = append(received, body)
			authSeen = append(authSeen, r.Header.Get("Authorization"))
			mu.Unlock()

			switch body["to"] {
			case "ExponentPushToken[broken]":
				w.WriteHeader(http.StatusInternalServerError)
			case "ExponentPushToken[unregistered]":
				_, _ = w.Write([]byte(`{"data":{"status":"error","message":"DeviceNotRegistered"}}`))
			default:
				_, _ = w.Write([]byte(`{"data":{"status":"ok","id":"abc"}}`))
			}
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("fans out one message per token and counts outcomes", func() {
		client := notify.NewPushClient(notify.PushConfig{GatewayURL: server.URL, AccessToken: "secret"})

		res, err := client.Send(context.Background(), []string{
			"ExponentPushToken[ok]",
			"ExponentPushToken[broken]",
			"ExponentPushToken[unregistered]",
		}, notify.NewQuestion(2, "Sam", 9))

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Sent).To(Equal(1))
		Expect(res.Failed).To(Equal(2))

		mu.Lock()
		defer mu.Unlock()
		Expect(received).To(HaveLen(3))
		Expect(received[0]["title"]).To(Equal("Sam asked about you"))
		Expect(received[0]["sound"]).To(Equal("default"))
		Expect(authSeen[0]).To(Equal("Bearer secret"))
	})

	It("stops when the context is cancelled", func() {
		client := notify.NewPushClient(notify.PushConfig{GatewayURL: server.URL, RatePerSecond: 0.001})
		ctx, cancel := context.WithCancel(context.Background())

		// The first token consumes the burst; the second has to wait and sees the cancellation.
		go cancel()
		res, err := client.Send(ctx, []string{"ExponentPushToken[a]", "ExponentPushToken[b]"}, notify.NewQuestion(2, "", 1))

		Expect(err).To(HaveOccurred())
		Expect(res.Sent + res.Failed).To(BeNumerically("<=", 1))
	})
})
