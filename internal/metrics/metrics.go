// Package metrics exposes Prometheus instrumentation for the broker,
// mounted the way the teacher pack mounts promhttp.Handler() at /metrics
// (internal/app/http.go).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventSequenceHighWaterMark tracks the highest sequence number
	// assigned so far.
	EventSequenceHighWaterMark = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentation_event_sequence_high_water_mark",
		Help: "Highest event sequence number assigned by the event bus.",
	})

	// EventBusSubscribers tracks how many live subscribers (SSE
	// connections plus the webhook relay) are attached to the event bus.
	EventBusSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentation_eventbus_subscribers",
		Help: "Number of currently attached event bus subscribers.",
	})

	// WebhookDeliveryFailures counts webhook deliveries that exhausted
	// their retry budget.
	WebhookDeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentation_webhook_delivery_failures_total",
		Help: "Webhook deliveries that failed after exhausting retries.",
	})

	// SubscriberDroppedEvents counts events dropped because a
	// subscriber's buffer was full.
	SubscriberDroppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentation_subscriber_dropped_events_total",
		Help: "Events dropped because a subscriber's buffer was full.",
	})
)
