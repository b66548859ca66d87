package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of successful order state transitions",
	}, []string{"event"})

	TransitionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Total number of rejected order commands",
	}, []string{"event", "kind"})

	ConflictRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_conflict_retries_total",
		Help: "Total number of version-conflict retries in the orchestrator",
	})

	ConflictsExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_conflicts_exhausted_total",
		Help: "Total number of commands that gave up after the bounded retry",
	})

	TransitionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_transition_latency_seconds",
		Help:    "Latency of order commands including load and save",
		Buckets: prometheus.DefBuckets,
	}, []string{"event"})

	NotificationsEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_emitted_total",
		Help: "Total number of notification events handed to the sink",
	})

	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Total number of notification events the sink refused (logged and discarded)",
	})

	PushDeliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_deliveries_total",
		Help: "Total number of push notifications delivered",
	})

	PushDeliveriesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_deliveries_failed_total",
		Help: "Total number of push notification delivery failures",
	})

	WorksheetBuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worksheet_builds_total",
		Help: "Total number of purchasing worksheet computations",
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
