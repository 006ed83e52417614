package worker_test

import (
	"context"

	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/notify"
	"safetalk.app/mediator/internal/queue"
)

type mockConsumer struct {
	readFn    func(ctx context.Context) ([]queue.Message, error)
	acked     []string
	requeued  []string
	deadLettr []string
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	if m.readFn != nil {
		return m.readFn(ctx)
	}
	return nil, nil
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *mockConsumer) Requeue(_ context.Context, msg queue.Message, _ string) error {
	m.requeued = append(m.requeued, msg.ID)
	return nil
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, _ string) error {
	m.deadLettr = append(m.deadLettr, msg.ID)
	return nil
}

type mockTaskProcessor struct {
	processFn func(ctx context.Context, task queue.Task) error
}

func (m *mockTaskProcessor) Process(ctx context.Context, task queue.Task) error {
	if m.processFn != nil {
		return m.processFn(ctx, task)
	}
	return nil
}

type mockPushTokens struct {
	listByUserFn func(ctx context.Context, userID int64) ([]model.PushToken, error)
}

func (m *mockPushTokens) ListByUser(ctx context.Context, userID int64) ([]model.PushToken, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}

type mockPusher struct {
	sendFn func(ctx context.Context, tokens []string, n notify.Notification) (notify.PushResult, error)
	calls  int
}

func (m *mockPusher) Send(ctx context.Context, tokens []string, n notify.Notification) (notify.PushResult, error) {
	m.calls++
	if m.sendFn != nil {
		return m.sendFn(ctx, tokens, n)
	}
	return notify.PushResult{Sent: len(tokens)}, nil
}

type mockCompleter struct {
	completeFn func(ctx context.Context, questionID int64, userID *int64) (*model.Insight, error)
}

func (m *mockCompleter) CompletePartnerPhase(ctx context.Context, questionID int64, userID *int64) (*model.Insight, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, questionID, userID)
	}
	return &model.Insight{ID: 1, QuestionID: questionID}, nil
}
