package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"safetalk.app/mediator/common/logger"
)

// scheduledTask is the sorted-set member. The ID keeps two identical tasks
// scheduled for the same instant from collapsing into one member.
type scheduledTask struct {
	ID         string            `json:"id"`
	TaskType   TaskType          `json:"task_type"`
	QuestionID *int64            `json:"question_id,omitempty"`
	UserID     *int64            `json:"user_id,omitempty"`
	Template   string            `json:"template,omitempty"`
	Title      string            `json:"title,omitempty"`
	Body       string            `json:"body,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	TraceID    string            `json:"trace_id,omitempty"`
}

// RedisScheduler holds tasks in a sorted set scored by due time and promotes
// them onto the task stream once due.
type RedisScheduler struct {
	client    *redis.Client
	key       string
	producer  Producer
	batchSize int64

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRedisScheduler(client *redis.Client, key string, producer Producer) *RedisScheduler {
	return &RedisScheduler{
		client:    client,
		key:       key,
		producer:  producer,
		batchSize: 100,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Schedule stores task to be enqueued at or after at.
func (s *RedisScheduler) Schedule(ctx context.Context, task Task, at time.Time) error {
	raw, err := json.Marshal(scheduledTask{
		ID:         uuid.NewString(),
		TaskType:   task.TaskType,
		QuestionID: task.QuestionID,
		UserID:     task.UserID,
		Template:   task.Template,
		Title:      task.Title,
		Body:       task.Body,
		Data:       task.Data,
		TraceID:    task.TraceID,
	})
	if err != nil {
		return fmt.Errorf("encoding scheduled task: %w", err)
	}

	if err := s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: string(raw),
	}).Err(); err != nil {
		return fmt.Errorf("zadd schedule: %w", err)
	}

	slog.InfoContext(ctx, "task scheduled",
		"task_type", task.TaskType,
		"due_at", at.UTC().Format(time.RFC3339))
	return nil
}

// PromoteDue moves every task due by now onto the stream. Removal from the
// set is the claim: only the caller whose ZREM succeeds enqueues the task.
func (s *RedisScheduler) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: s.batchSize,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore: %w", err)
	}

	promoted := 0
	for _, member := range members {
		removed, err := s.client.ZRem(ctx, s.key, member).Result()
		if err != nil {
			return promoted, fmt.Errorf("zrem: %w", err)
		}
		if removed == 0 {
			continue
		}

		var st scheduledTask
		if err := json.Unmarshal([]byte(member), &st); err != nil {
			slog.ErrorContext(ctx, "dropping undecodable scheduled task", "error", err)
			continue
		}

		task := Task{
			TaskType:   st.TaskType,
			QuestionID: st.QuestionID,
			UserID:     st.UserID,
			Template:   st.Template,
			Title:      st.Title,
			Body:       st.Body,
			Data:       st.Data,
			TraceID:    st.TraceID,
		}
		if err := s.producer.Enqueue(ctx, task); err != nil {
			// Put it back so the next tick retries.
			if zErr := s.client.ZAdd(ctx, s.key, redis.Z{Score: float64(now.UnixMilli()), Member: member}).Err(); zErr != nil {
				slog.ErrorContext(ctx, "failed to restore scheduled task", "error", zErr)
			}
			return promoted, fmt.Errorf("enqueue scheduled task: %w", err)
		}
		promoted++
	}

	return promoted, nil
}

// Run promotes due tasks every interval until Stop is called or ctx ends.
func (s *RedisScheduler) Run(ctx context.Context, interval time.Duration) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "mediator.queue.scheduler",
	})

	defer close(s.stoppedCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "scheduler started", "interval", interval, "key", s.key)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "scheduler stopping")
			return
		case now := <-ticker.C:
			n, err := s.PromoteDue(ctx, now)
			if err != nil {
				slog.ErrorContext(ctx, "promote cycle error", "error", err)
			}
			if n > 0 {
				slog.InfoContext(ctx, "promoted due tasks", "count", n)
			}
		}
	}
}

func (s *RedisScheduler) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}
