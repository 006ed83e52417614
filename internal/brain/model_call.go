package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"safetalk.app/mediator/common/llm"
)

// ModelSettings pairs a client with the generation knobs for one phase.
type ModelSettings struct {
	Client      llm.Client
	MaxTokens   int
	Temperature float64
}

const (
	phaseClarify    = "clarify"
	phaseReflection = "reflection"
	phaseInsight    = "insight"
)

// complete makes one bounded model call. Every failure, a timeout included, is
// transient: nothing has been written yet when it is returned.
func complete(ctx context.Context, phase string, m ModelSettings, timeout time.Duration, system string, msgs []llm.Message) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := m.Client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     msgs,
		MaxTokens:    m.MaxTokens,
		Temperature:  llm.Temp(m.Temperature),
	})
	modelLatency.WithLabelValues(phase).Observe(time.Since(start).Seconds())

	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = llm.ErrEmptyCompletion
	}
	if err != nil {
		modelCalls.WithLabelValues(phase, "error").Inc()
		slog.WarnContext(ctx, "language model call failed",
			"phase", phase,
			"model", m.Client.Model(),
			"retryable", llm.IsRetryable(ctx, err),
			"error", err)
		return "", transientError(fmt.Errorf("%s model call: %w", phase, err))
	}

	modelCalls.WithLabelValues(phase, "ok").Inc()
	slog.DebugContext(ctx, "language model call completed",
		"phase", phase,
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
		"finish_reason", resp.FinishReason)

	return strings.TrimSpace(resp.Content), nil
}
