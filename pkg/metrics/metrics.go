package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records sign-in attempts by outcome
	// (otp_sent|authenticated|invalid_credentials|locked|suspended|invalid_otp|not_found).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hundredminds_auth_attempts_total",
			Help: "Total number of sign-in attempts",
		},
		[]string{"result"},
	)

	// TokenRefreshes counts access tokens minted from a refresh token, by trigger (missing|expired|invalid).
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hundredminds_token_refreshes_total",
			Help: "Total number of access tokens issued through the refresh path",
		},
		[]string{"trigger"},
	)

	// PasswordResets counts password reset lifecycle events (requested|completed|suspended).
	PasswordResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hundredminds_password_resets_total",
			Help: "Total number of password reset events",
		},
		[]string{"event"},
	)

	// TeamInvites counts invitation lifecycle events (created|accepted|declined).
	TeamInvites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hundredminds_team_invites_total",
			Help: "Total number of team invitation events",
		},
		[]string{"event"},
	)

	// Notifications counts outbound notifications by kind and result (sent|failed).
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hundredminds_notifications_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"kind", "result"},
	)

	// MaintenanceRuns counts maintenance job executions by job and result.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hundredminds_maintenance_runs_total",
			Help: "Total number of maintenance job runs",
		},
		[]string{"job", "result"},
	)

	// InFlight tracks requests currently being served.
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hundredminds_http_requests_in_flight",
			Help: "Number of HTTP requests being served",
		},
	)

	// APILatency measures HTTP request latencies by route template.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hundredminds_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
