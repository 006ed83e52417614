package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"safetalk.app/mediator/common/id"
	"safetalk.app/mediator/common/logger"
	"safetalk.app/mediator/common/otel"
	"safetalk.app/mediator/core/config"
	"safetalk.app/mediator/core/db"
	"safetalk.app/mediator/internal/brain"
	"safetalk.app/mediator/internal/lock"
	"safetalk.app/mediator/internal/notify"
	"safetalk.app/mediator/internal/queue"
	"safetalk.app/mediator/internal/service"
	"safetalk.app/mediator/internal/store"
	"safetalk.app/mediator/internal/worker"
)

const maxAttempts = 3

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "mediator worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer)

	// Node id must differ from the server's.
	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    10,
		Block:        5 * time.Second,
		MaxAttempts:  maxAttempts,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, nil)
	scheduler := queue.NewRedisScheduler(redisClient, cfg.Pipeline.ScheduleKey, producer)
	stores := store.NewStores(database.Queries())

	services, err := service.NewServices(service.ServicesConfig{
		Stores:        stores,
		TxRunner:      brain.NewTxRunner(database),
		Locker:        lock.NewRedisLocker(redisClient, cfg.Pipeline.LockPrefix),
		Notifier:      notify.NewQueueNotifier(producer),
		Scheduler:     scheduler,
		ClarifyLLM:    cfg.ClarifyLLM,
		ReflectionLLM: cfg.ReflectionLLM,
		InsightLLM:    cfg.InsightLLM,
		Dialog:        cfg.Dialog,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to build services", "error", err)
		os.Exit(1)
	}

	pusher := notify.NewPushClient(notify.PushConfig{
		GatewayURL:    cfg.Push.GatewayURL,
		AccessToken:   cfg.Push.AccessToken,
		RatePerSecond: cfg.Push.RatePerSecond,
		Timeout:       10 * time.Second,
	})

	processor := worker.NewProcessor(stores.PushTokens(), pusher, services.Orchestrator())
	w := worker.New(consumer, processor, worker.Config{
		MaxAttempts: maxAttempts,
	})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.RedisGroup,
		Consumer:  cfg.Pipeline.RedisConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  1 * time.Minute,
		BatchSize: 10,
	}, consumer, w.ProcessMessage)
	reclaimer.OnFailure(w.HandleFailure)

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go reclaimer.Run(ctx)
	go scheduler.Run(ctx, time.Second)

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Quick loops first; the worker may be mid-task.
	scheduler.Stop()
	reclaimer.Stop()
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
 ___   __ _  / _| ___ | |_  __ _ | || | __
/ __| / _' || |_ / _ \| __|/ _' || || |/ /
\__ \| (_| ||  _|  __/| |_| (_| || ||   <
|___/ \__,_||_|  \___| \__|\__,_||_||_|\_\  worker
`
