// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExecutionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_executions_completed_total",
			Help: "Total number of template executions completed",
		},
		[]string{"trigger_type"},
	)

	ExecutionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_executions_failed_total",
			Help: "Total number of template executions failed",
		},
		[]string{"trigger_type", "error_code"},
	)

	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "template_execution_duration_seconds",
			Help: "Duration of a single template execution in seconds",
		},
		[]string{"trigger_type"},
	)

	ScheduledBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduled_batch_size",
			Help:    "Number of templates matched per scheduled run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"frequency"},
	)
)
