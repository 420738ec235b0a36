package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_orders_total",
		Help: "Webhook orders processed, by result",
	}, []string{"result"})

	CatalogUpsertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_upserts_total",
		Help: "Catalog webhook entries processed, by entity and result",
	}, []string{"entity", "result"})

	PickingTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "picking_transitions_total",
		Help: "Committed picking transitions",
	}, []string{"transition"})

	PickingRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "picking_rejections_total",
		Help: "Rejected picking operations, by reason",
	}, []string{"reason"})

	ItemsPickedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "items_picked_total",
		Help: "Total quantity of units picked",
	})

	OrdersPackedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_packed_total",
		Help: "Total number of orders packed into crates",
	})

	NotificationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Failed best-effort downstream notifications",
	}, []string{"target"})

	InventorySyncLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_sync_latency_seconds",
		Help:    "Latency of the post-pack inventory sync",
		Buckets: prometheus.DefBuckets,
	})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Domain events written to kafka, by event type and result",
	}, []string{"event_type", "result"})

	WebhookMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_messages_total",
		Help: "Webhook envelopes consumed from kafka, by kind and result",
	}, []string{"kind", "result"})

	StockReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reads_total",
		Help: "Stock lookups, by where they were answered from",
	}, []string{"source"})

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
