package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"safetalk.app/mediator/internal/http/handler"
	"safetalk.app/mediator/internal/http/middleware"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker func(ctx context.Context) error

type RouterConfig struct {
	Checks map[string]HealthChecker
}

func SetupRoutes(router *gin.Engine, orchestrator handler.Orchestrator, cfg RouterConfig) {
	router.GET("/health", health(cfg.Checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", middleware.RequireUser())
	{
		questionHandler := handler.NewQuestionHandler(orchestrator)
		QuestionRouter(v1.Group("/questions"), questionHandler)

		partnerHandler := handler.NewPartnerHandler(orchestrator)
		PartnerRouter(v1.Group("/partners"), partnerHandler)

		safetyHandler := handler.NewSafetyHandler(orchestrator)
		SafetyRouter(v1.Group("/safety"), safetyHandler)
	}
}

func health(checks map[string]HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				slog.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				results[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		body := gin.H{"status": "ok", "checks": results}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	}
}
