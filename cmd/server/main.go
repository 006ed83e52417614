package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"safetalk.app/mediator/common/id"
	"safetalk.app/mediator/common/logger"
	"safetalk.app/mediator/common/otel"
	"safetalk.app/mediator/core/config"
	"safetalk.app/mediator/core/db"
	"safetalk.app/mediator/internal/brain"
	"safetalk.app/mediator/internal/http/middleware"
	httprouter "safetalk.app/mediator/internal/http/router"
	"safetalk.app/mediator/internal/lock"
	"safetalk.app/mediator/internal/notify"
	"safetalk.app/mediator/internal/queue"
	"safetalk.app/mediator/internal/service"
	"safetalk.app/mediator/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "mediator starting",
		"env", cfg.Env,
		"service", cfg.OTel.ServiceName,
		"partner_completion", cfg.Dialog.PartnerCompletion)

	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
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
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, nil)
	defer producer.Close()

	services, err := service.NewServices(service.ServicesConfig{
		Stores:        store.NewStores(database.Queries()),
		TxRunner:      brain.NewTxRunner(database),
		Locker:        lock.NewRedisLocker(redisClient, cfg.Pipeline.LockPrefix),
		Notifier:      notify.NewQueueNotifier(producer),
		Scheduler:     queue.NewRedisScheduler(redisClient, cfg.Pipeline.ScheduleKey, producer),
		ClarifyLLM:    cfg.ClarifyLLM,
		ReflectionLLM: cfg.ReflectionLLM,
		InsightLLM:    cfg.InsightLLM,
		Dialog:        cfg.Dialog,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to build services", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, httprouter.RouterConfig{
		Checks: map[string]httprouter.HealthChecker{
			"postgres": database.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Dialog turns wait on the model; leave room past the LLM timeout.
		WriteTimeout: cfg.Dialog.LLMTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services, routerCfg httprouter.RouterConfig) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services.Orchestrator(), routerCfg)

	return router
}

const banner = `
 ___   __ _  / _| ___ | |_  __ _ | || | __
/ __| / _' || |_ / _ \| __|/ _' || || |/ /
\__ \| (_| ||  _|  __/| |_| (_| || ||   <
|___/ \__,_||_|  \___| \__|\__,_||_||_|\_\  server
`
