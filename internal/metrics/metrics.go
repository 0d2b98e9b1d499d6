// Package metrics Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legend_jobs_enqueued_total",
		Help: "Total number of scheduled jobs by kind.",
	}, []string{"kind"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legend_jobs_processed_total",
		Help: "Total number of processed jobs by kind and outcome.",
	}, []string{"kind", "status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "legend_job_duration_seconds",
		Help:    "Job execution time.",
		Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120},
	}, []string{"kind"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "legend_job_queue_depth",
		Help: "Jobs waiting in the in-process queue.",
	})

	ReplyStage = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legend_reply_sanitize_stage_total",
		Help: "Sanitization stage that produced the published reply.",
	}, []string{"stage"})

	EvidenceGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legend_evidence_total",
		Help: "Evidence generation outcomes by kind.",
	}, []string{"kind", "status"})

	StoriesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legend_stories_generated_total",
		Help: "Story generation sweep outcomes.",
	}, []string{"status"})

	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legend_state_transitions_total",
		Help: "Story state transitions.",
	}, []string{"from", "to"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legend_notifications_total",
		Help: "Notifications written by category and type.",
	}, []string{"category", "type"})

	GeneratorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legend_generator_requests_total",
		Help: "Outbound generator calls by operation and status.",
	}, []string{"op", "status"})

	GeneratorLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "legend_generator_latency_seconds",
		Help:    "Outbound generator call latency.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"op"})
)
