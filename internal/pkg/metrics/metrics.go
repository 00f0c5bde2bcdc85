package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WSConnections tracks currently open websocket connections
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chactivo_websocket_connections",
		Help: "Number of open WebSocket connections.",
	})

	// WSEventsSent counts events written to websocket send buffers
	WSEventsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chactivo_websocket_events_sent_total",
		Help: "Total WebSocket events sent.",
	})

	// WSEventsDropped counts events dropped due to full send buffers
	WSEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chactivo_websocket_events_dropped_total",
		Help: "Total WebSocket events dropped because the send buffer was full.",
	})

	// MessagesSent counts accepted chat messages
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chactivo_chat_messages_sent_total",
		Help: "Total chat messages accepted.",
	})

	// MessagesRejected counts messages denied by the rate limiter, by reason
	MessagesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chactivo_chat_messages_rejected_total",
		Help: "Total chat messages rejected by the rate limiter.",
	}, []string{"reason"})

	// DeliveryLatency observes send to first-delivery round trips
	DeliveryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chactivo_chat_delivery_latency_seconds",
		Help:    "Latency between message send and first delivery receipt.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// ReadLatency observes send to first-read round trips
	ReadLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chactivo_chat_read_latency_seconds",
		Help:    "Latency between message send and first read receipt.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	// MessagesSuspended counts messages that never got a delivery receipt
	MessagesSuspended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chactivo_chat_messages_suspended_total",
		Help: "Total tracked messages suspended after the delivery timeout.",
	})
)

// Handler returns the prometheus exposition endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
