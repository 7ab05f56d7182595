package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TaskOperations counts lifecycle operations by operation (create|update|delete|submit) and result (success|failure).
	TaskOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_task_operations_total",
			Help: "Total number of task lifecycle operations",
		},
		[]string{"operation", "result"},
	)

	// NotificationsSaved counts persisted notification records by type.
	NotificationsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_notifications_saved_total",
			Help: "Total number of notification records persisted",
		},
		[]string{"type"},
	)

	// PushDeliveries counts per-token push outcomes (success|failure).
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_push_deliveries_total",
			Help: "Total number of push deliveries by outcome",
		},
		[]string{"result"},
	)

	// FanoutFailures counts post-commit fanouts that failed and were swallowed.
	FanoutFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_fanout_failures_total",
			Help: "Total number of notification fanouts that failed after a committed task operation",
		},
		[]string{"type"},
	)

	// FanoutLatency measures end-to-end fanout duration.
	FanoutLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskhub_fanout_duration_seconds",
			Help:    "Notification fanout latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskhub_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Result maps an error to the success|failure label used across counters.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
