// Package metrics exposes Prometheus instrumentation for the detection
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "phiguard_events_processed_total",
			Help: "Total number of access events evaluated",
		},
	)

	AnomaliesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phiguard_anomalies_emitted_total",
			Help: "Total number of anomalies emitted",
		},
		[]string{"severity", "type"},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "phiguard_evaluation_duration_seconds",
			Help:    "Time taken to evaluate a single access event",
			Buckets: prometheus.DefBuckets,
		},
	)

	CooldownSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "phiguard_cooldown_suppressed_total",
			Help: "Rule evaluations skipped because the (user, rule) pair was cooling down",
		},
	)

	DetectorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phiguard_detector_errors_total",
			Help: "Detector evaluation failures by anomaly type and reason",
		},
		[]string{"type", "reason"},
	)

	RuleStoreFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "phiguard_rulestore_fallbacks_total",
			Help: "Times the rule store fell back to the built-in default rule set",
		},
	)

	BaselineRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phiguard_baseline_refreshes_total",
			Help: "Baseline refresh sweeps by outcome",
		},
		[]string{"status"},
	)

	ReportFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "phiguard_report_failures_total",
			Help: "Anomaly persistence or indexing failures",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phiguard_notifications_sent_total",
			Help: "Notification dispatch attempts by outcome",
		},
		[]string{"status"},
	)
)
