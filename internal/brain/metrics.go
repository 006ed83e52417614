package brain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Labels: role, outcome (opened, answered, escalated, failed, replayed)
	dialogTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safetalk",
		Subsystem: "dialog",
		Name:      "turns_total",
		Help:      "Dialog advance calls by role and outcome",
	}, []string{"role", "outcome"})

	// Labels: category, severity
	escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safetalk",
		Subsystem: "safety",
		Name:      "escalations_total",
		Help:      "Flagged turns escalated to red_flag",
	}, []string{"category", "severity"})

	// Labels: phase (clarify, reflection, insight), result (ok, error)
	modelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safetalk",
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Language model calls by phase and result",
	}, []string{"phase", "result"})

	modelLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "safetalk",
		Subsystem: "llm",
		Name:      "latency_seconds",
		Help:      "Language model call latency in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{"phase"})

	// Labels: outcome (created, existing, aborted, malformed, failed)
	syntheses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safetalk",
		Subsystem: "insight",
		Name:      "syntheses_total",
		Help:      "Insight synthesis attempts by outcome",
	}, []string{"outcome"})
)
