package llm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// IsRetryable reports whether err is worth retrying with the same input:
// rate limits, server errors and network faults are; client errors and
// cancellations are not.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled")
		return false
	}

	// A per-call timeout is a transient fault; the caller may try again.
	if errors.Is(err, context.DeadlineExceeded) {
		slog.WarnContext(ctx, "llm call timed out, will retry")
		return true
	}

	if errors.Is(err, ErrEmptyCompletion) {
		slog.WarnContext(ctx, "llm returned empty completion, will retry")
		return true
	}

	status := 0
	var openaiErr *openai.Error
	var anthropicErr *anthropic.Error
	switch {
	case errors.As(err, &openaiErr):
		status = openaiErr.StatusCode
	case errors.As(err, &anthropicErr):
		status = anthropicErr.StatusCode
	}

	if status != 0 {
		switch {
		case status == 429:
			slog.WarnContext(ctx, "llm rate limited, will retry", "status_code", status)
			return true
		case status >= 500:
			slog.WarnContext(ctx, "llm server error, will retry", "status_code", status)
			return true
		default:
			slog.ErrorContext(ctx, "llm client error, not retryable", "status_code", status)
			return false
		}
	}

	// Network errors (no API response) are generally retryable
	slog.WarnContext(ctx, "llm network error, will retry", "error", err)
	return true
}
