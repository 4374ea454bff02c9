package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records sign-in attempts by result (success|not_found|unverified|invalid|error).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mystery_auth_attempts_total",
			Help: "Total number of sign-in attempts",
		},
		[]string{"result"},
	)

	// Registrations counts sign-up outcomes (created|reclaimed|conflict|invalid|delivery_failed|error).
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mystery_registrations_total",
			Help: "Total number of registration attempts",
		},
		[]string{"result"},
	)

	// Verifications counts verification code checks (success|expired|mismatch|not_found|error).
	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mystery_verifications_total",
			Help: "Total number of verification code checks",
		},
		[]string{"result"},
	)

	// MessagesSubmitted counts anonymous message submissions (accepted|not_accepting|not_found|invalid|error).
	MessagesSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mystery_messages_submitted_total",
			Help: "Total number of anonymous message submissions",
		},
		[]string{"result"},
	)

	// MessagesDeleted counts messages removed by their owners.
	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mystery_messages_deleted_total",
			Help: "Total number of messages deleted by their owners",
		},
	)

	// Accounts tracks stored accounts by verification state (verified|pending).
	Accounts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mystery_accounts",
			Help: "Number of stored accounts by verification state",
		},
		[]string{"state"},
	)

	// InboxMessages tracks the number of stored messages across all inboxes.
	InboxMessages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mystery_inbox_messages",
			Help: "Number of messages stored across all inboxes",
		},
	)

	// MaintenanceRuns counts scheduled maintenance job executions by job and result.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mystery_maintenance_runs_total",
			Help: "Total number of maintenance job runs",
		},
		[]string{"job", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mystery_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
