package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Labels: task_type, outcome (ok, requeued, dead_lettered)
	tasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safetalk",
		Subsystem: "worker",
		Name:      "tasks_total",
		Help:      "Tasks handled by the worker by type and outcome",
	}, []string{"task_type", "outcome"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "safetalk",
		Subsystem: "worker",
		Name:      "task_duration_seconds",
		Help:      "Time spent processing one task",
		Buckets:   prometheus.DefBuckets,
	}, []string{"task_type"})
)
