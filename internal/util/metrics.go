package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuotesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotes_created_total",
		Help: "Total number of quotes created",
	})

	QuotesSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotes_submitted_total",
		Help: "Total number of quotes submitted to a lab",
	})

	QuotesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotes_rejected_total",
		Help: "Total number of rejected quotes",
	}, []string{"by"})

	QuotesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotes_completed_total",
		Help: "Total number of quotes with all results submitted",
	})

	QuoteActionsDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_actions_denied_total",
		Help: "Total number of denied quote actions",
	}, []string{"reason"})

	PaymentsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total number of payments recorded against quotes",
	})

	TrackingAttachedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_attached_total",
		Help: "Total number of tracking numbers attached",
	})

	TrackingPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_polls_total",
		Help: "Total number of carrier poll outcomes",
	}, []string{"source", "outcome"})

	TrackingCooldownRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_cooldown_rejected_total",
		Help: "Total number of manual refreshes rejected by the cooldown",
	})

	EmailsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Total number of outbound emails handed to the notification pipeline",
	})

	EmailsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emails_failed_total",
		Help: "Total number of outbound emails that failed to send",
	})

	CarrierPollLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "carrier_poll_latency_seconds",
		Help:    "Latency of carrier tracking polls",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
