package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flextea_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flextea_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flextea_users_registered_total",
			Help: "Total users registered",
		},
	)

	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flextea_messages_posted_total",
			Help: "Total anonymous messages posted",
		},
		[]string{"category"},
	)

	RepliesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flextea_replies_delivered_total",
			Help: "Total anonymous replies delivered to authors",
		},
	)

	ContentRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flextea_content_rejected_total",
			Help: "Total message bodies rejected by the content filter",
		},
	)

	FanoutDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flextea_fanout_deliveries_total",
			Help: "Total fan-out delivery attempts",
		},
		[]string{"outcome"}, // "ok" or "failed"
	)

	UpdatesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flextea_updates_received_total",
			Help: "Total webhook updates received",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flextea_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flextea_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
