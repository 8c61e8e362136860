package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created with stock reserved",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order attempts",
	}, []string{"reason"})

	OrdersConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_confirmed_total",
		Help: "Total number of orders confirmed by the event consumer",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of orders cancelled by the event consumer",
	})

	LockAcquireLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lock_acquire_latency_seconds",
		Help:    "Latency of product lock acquisition",
		Buckets: prometheus.DefBuckets,
	})

	LockTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lock_timeouts_total",
		Help: "Total number of lock acquisition timeouts",
	})

	ReservationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_failed_total",
		Help: "Total number of failed stock reservations",
	}, []string{"reason"})

	EventsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Total number of outbox events published to the broker",
	})

	EventsPublishFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_publish_failed_total",
		Help: "Total number of outbox publish attempts that failed",
	})

	EventsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "events_duplicate_total",
		Help: "Total number of redelivered events skipped by the consumer",
	})

	EventsParkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "events_parked_total",
		Help: "Total number of events parked after a reservation state violation",
	})

	EventProcessingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "event_processing_latency_seconds",
		Help:    "Latency of order event processing",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})

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
