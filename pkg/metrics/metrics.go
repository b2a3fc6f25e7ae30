// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Live event outcomes.
const (
	OutcomeMerged    = "merged"
	OutcomeDuplicate = "duplicate"
	OutcomeDeferred  = "deferred"
	OutcomeDropped   = "dropped"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// LiveSubscriptionsActive tracks attached push-channel subscriptions.
	LiveSubscriptionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "live_subscriptions_active",
			Help: "Number of attached live subscriptions",
		},
		[]string{"kind"},
	)

	// LiveEventsTotal tracks live events by what the bridge did with them.
	LiveEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_events_total",
			Help: "Live events received, by outcome",
		},
		[]string{"kind", "outcome"},
	)

	// ConversationsCreatedTotal tracks conversations created by the resolver.
	ConversationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_created_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks total messages appended.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages appended",
		},
		[]string{"status"},
	)

	// MessagesMarkedReadTotal tracks messages flipped to read.
	MessagesMarkedReadTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_marked_read_total",
			Help: "Total messages marked as read",
		},
	)

	// AggregateSkippedTotal tracks conversations dropped from inbox listings.
	AggregateSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregate_skipped_total",
			Help: "Conversations skipped from listings after a detail fetch failed",
		},
	)

	// PresenceTouchesTotal tracks presence heartbeats by result.
	PresenceTouchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_touches_total",
			Help: "Presence heartbeats, by result",
		},
		[]string{"result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLiveEvent records what happened to one live event.
func RecordLiveEvent(kind, outcome string) {
	LiveEventsTotal.WithLabelValues(kind, outcome).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
