package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector defines the interface for collecting live sync metrics
type Collector interface {
	RecordMessage(topicKind string)
	RecordDroppedMessage(topicKind string)
	RecordDuplicateEvent()
	RecordReconnect()
	SetConnected(connected bool)
	RecordTaskFailure(name string)
}

// NoOpCollector is a no-op implementation for when metrics aren't needed
type NoOpCollector struct{}

func (NoOpCollector) RecordMessage(topicKind string)        {}
func (NoOpCollector) RecordDroppedMessage(topicKind string) {}
func (NoOpCollector) RecordDuplicateEvent()                 {}
func (NoOpCollector) RecordReconnect()                      {}
func (NoOpCollector) SetConnected(connected bool)           {}
func (NoOpCollector) RecordTaskFailure(name string)         {}

// PrometheusMetrics implements Collector using Prometheus
type PrometheusMetrics struct {
	registry          *prometheus.Registry
	messagesTotal     *prometheus.CounterVec
	droppedTotal      *prometheus.CounterVec
	duplicateEvents   prometheus.Counter
	reconnectsTotal   prometheus.Counter
	connected         prometheus.Gauge
	taskFailuresTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates and registers the collectors on a private registry
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livematch_stream_messages_total",
			Help: "Total number of stream messages delivered to handlers",
		}, []string{"topic_kind"}),
		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livematch_stream_messages_dropped_total",
			Help: "Total number of stream messages discarded after their subscription closed",
		}, []string{"topic_kind"}),
		duplicateEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livematch_duplicate_events_total",
			Help: "Total number of match events ignored because their id was already logged",
		}),
		reconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livematch_stream_reconnects_total",
			Help: "Total number of stream reconnect attempts",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livematch_stream_connected",
			Help: "Whether the stream connection is currently up",
		}),
		taskFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livematch_task_failures_total",
			Help: "Total number of failed background tasks",
		}, []string{"task"}),
	}

	registry.MustRegister(
		m.messagesTotal,
		m.droppedTotal,
		m.duplicateEvents,
		m.reconnectsTotal,
		m.connected,
		m.taskFailuresTotal,
	)

	return m
}

func (m *PrometheusMetrics) RecordMessage(topicKind string) {
	m.messagesTotal.WithLabelValues(topicKind).Inc()
}

func (m *PrometheusMetrics) RecordDroppedMessage(topicKind string) {
	m.droppedTotal.WithLabelValues(topicKind).Inc()
}

func (m *PrometheusMetrics) RecordDuplicateEvent() {
	m.duplicateEvents.Inc()
}

func (m *PrometheusMetrics) RecordReconnect() {
	m.reconnectsTotal.Inc()
}

func (m *PrometheusMetrics) SetConnected(connected bool) {
	if connected {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

func (m *PrometheusMetrics) RecordTaskFailure(name string) {
	m.taskFailuresTotal.WithLabelValues(name).Inc()
}

// Handler returns an http.Handler that serves the registry
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
