package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ga"

// Metrics contains the store, pubsub, codec and broker metrics.
// Every Record method is safe to call on a nil *Metrics, so instrumentation
// stays optional for callers that do not configure a registry.
type Metrics struct {
	// Key/value metrics
	KVOperations *prometheus.CounterVec
	KVDuration   *prometheus.HistogramVec

	// Pub/sub metrics
	MessagesPublished *prometheus.CounterVec
	MessagesDelivered *prometheus.CounterVec
	CallbackPanics    *prometheus.CounterVec

	// Codec metrics
	CodecFallbacks *prometheus.CounterVec

	// Local broker metrics
	BrokerConnections  prometheus.Gauge
	BrokerFrames       *prometheus.CounterVec
	BrokerSendFailures prometheus.Counter

	HealthStatus *prometheus.GaugeVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		KVOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kv",
				Name:      "operations_total",
				Help:      "Total number of key/value operations",
			},
			[]string{"backend", "operation", "status"},
		),

		KVDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "kv",
				Name:      "operation_duration_seconds",
				Help:      "Key/value operation latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "operation"},
		),

		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pubsub",
				Name:      "published_total",
				Help:      "Total number of messages published",
			},
			[]string{"backend"},
		),

		MessagesDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pubsub",
				Name:      "delivered_total",
				Help:      "Total number of callback invocations",
			},
			[]string{"backend"},
		),

		CallbackPanics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pubsub",
				Name:      "callback_panics_total",
				Help:      "Total number of recovered callback panics",
			},
			[]string{"backend"},
		),

		CodecFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "codec",
				Name:      "fallbacks_total",
				Help:      "Codecs built without their compression library, by requested method",
			},
			[]string{"method"},
		),

		BrokerConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "broker",
				Name:      "connections",
				Help:      "Open local broker connections",
			},
		),

		BrokerFrames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "broker",
				Name:      "frames_total",
				Help:      "Frames received by the local broker, by type",
			},
			[]string{"type"},
		),

		BrokerSendFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "broker",
				Name:      "send_failures_total",
				Help:      "Broadcast frames dropped for a single subscriber",
			},
		),

		HealthStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// RecordKVOperation counts a key/value operation and observes its latency
func (m *Metrics) RecordKVOperation(backend, operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.KVOperations.WithLabelValues(backend, operation, status).Inc()
	m.KVDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordPublished increments the published message counter
func (m *Metrics) RecordPublished(backend string) {
	if m == nil {
		return
	}
	m.MessagesPublished.WithLabelValues(backend).Inc()
}

// RecordDelivered increments the delivered counter once per callback invocation
func (m *Metrics) RecordDelivered(backend string) {
	if m == nil {
		return
	}
	m.MessagesDelivered.WithLabelValues(backend).Inc()
}

// RecordCallbackPanic increments the recovered panic counter
func (m *Metrics) RecordCallbackPanic(backend string) {
	if m == nil {
		return
	}
	m.CallbackPanics.WithLabelValues(backend).Inc()
}

// RecordCodecFallback counts a codec that degraded to no compression
func (m *Metrics) RecordCodecFallback(method string) {
	if m == nil {
		return
	}
	m.CodecFallbacks.WithLabelValues(method).Inc()
}

// RecordBrokerConnection adjusts the open connection gauge by delta
func (m *Metrics) RecordBrokerConnection(delta int) {
	if m == nil {
		return
	}
	m.BrokerConnections.Add(float64(delta))
}

// RecordBrokerFrame counts an inbound broker frame
func (m *Metrics) RecordBrokerFrame(frameType string) {
	if m == nil {
		return
	}
	m.BrokerFrames.WithLabelValues(frameType).Inc()
}

// RecordBrokerSendFailure counts a frame that could not reach one subscriber
func (m *Metrics) RecordBrokerSendFailure() {
	if m == nil {
		return
	}
	m.BrokerSendFailures.Inc()
}

// RecordHealthStatus updates health check status
func (m *Metrics) RecordHealthStatus(component string, healthy bool) {
	if m == nil {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.HealthStatus.WithLabelValues(component).Set(value)
}

// RecordNATSStatus updates NATS connection status
func (m *Metrics) RecordNATSStatus(connected bool) {
	if m == nil {
		return
	}
	value := 0.0
	if connected {
		value = 1.0
	}
	m.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (m *Metrics) RecordNATSReconnect() {
	if m == nil {
		return
	}
	m.NATSReconnects.Inc()
}
