package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truefeedback_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// MessagesDelivered counts anonymous messages accepted and stored.
	MessagesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "truefeedback_messages_delivered_total",
			Help: "Total number of messages delivered to inboxes",
		},
	)

	// MessagesRejected counts delivery attempts refused by the acceptance gate
	// or failing validation, labelled by reason (not_accepting|invalid|not_found).
	MessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truefeedback_messages_rejected_total",
			Help: "Total number of rejected message deliveries",
		},
		[]string{"reason"},
	)

	// ActiveSessions tracks active sessions (not expired/revoked).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "truefeedback_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "truefeedback_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
