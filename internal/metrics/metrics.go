package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mundo"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPResponseBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
		[]string{"path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Scheduled job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of scheduled job runs",
		},
		[]string{"job", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduled job execution time distribution",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"job"},
	)

	JobAffectedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_affected_rows_total",
			Help:      "Rows changed by scheduled jobs",
		},
		[]string{"job"},
	)
)

// Entitlement metrics
var (
	EntitlementDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entitlement_decisions_total",
			Help:      "Entitlement decisions by action and reason",
		},
		[]string{"action", "reason"},
	)

	DownloadsGranted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_granted_total",
			Help:      "Total number of granted downloads",
		},
		[]string{"plan"},
	)

	SessionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Total number of device sessions opened",
		},
	)
)

// Payment metrics
var (
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook events by provider, type and outcome",
		},
		[]string{"provider", "type", "outcome"},
	)

	PlanChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_changes_total",
			Help:      "User plan changes by target plan and source",
		},
		[]string{"plan", "source"},
	)

	PixGatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pix_gateway_calls_total",
			Help:      "Calls to the PIX gateway by status",
		},
		[]string{"status"},
	)
)
