package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"safetalk.app/mediator/common/logger"
	"safetalk.app/mediator/internal/queue"
)

type Config struct {
	MaxAttempts int
}

type Worker struct {
	consumer  Consumer
	processor TaskProcessor
	cfg       Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, processor TaskProcessor, cfg Config) *Worker {
	return &Worker{
		consumer:  consumer,
		processor: processor,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "mediator.worker",
	})

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.ProcessMessage(ctx, msg); err != nil {
			w.HandleFailure(ctx, msg, err)
		}
	}

	return nil
}

// ProcessMessage runs one message and acks it on success. Exported so the
// reclaimer can reuse it.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) (err error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID:  &msg.ID,
		TaskType:   logger.Ptr(string(msg.TaskType)),
		QuestionID: msg.QuestionID,
		UserID:     msg.UserID,
	})

	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_task",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			sc.RecordError(err)
			slog.ErrorContext(ctx, "message processing failed", "error", err)
		}
	}()

	slog.InfoContext(ctx, "processing message", "attempt", msg.Attempt)

	start := time.Now()
	err = w.processor.Process(ctx, msg.Task)
	taskDuration.WithLabelValues(string(msg.TaskType)).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	tasksProcessed.WithLabelValues(string(msg.TaskType), "ok").Inc()

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// Log but don't fail - message will be reclaimed but that's safe
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}
	return nil
}

// HandleFailure requeues a failed message, or dead-letters it when the error is
// permanent or its attempts are used up.
func (w *Worker) HandleFailure(ctx context.Context, msg queue.Message, err error) {
	if isPermanent(err) || msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "giving up on message, sending to DLQ",
			"message_id", msg.ID,
			"task_type", msg.TaskType,
			"attempts", msg.Attempt,
			"permanent", isPermanent(err))
		tasksProcessed.WithLabelValues(string(msg.TaskType), "dead_lettered").Inc()
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"task_type", msg.TaskType,
		"attempt", msg.Attempt)
	tasksProcessed.WithLabelValues(string(msg.TaskType), "requeued").Inc()
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
