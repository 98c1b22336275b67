package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the chat pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Admission metrics
	AdmissionDecisions *prometheus.CounterVec
	AdmissionErrors    prometheus.Counter

	// Retrieval metrics
	RetrievalLatency     prometheus.Histogram
	RetrievalSnippets    prometheus.Histogram
	RetrievalDegraded    *prometheus.CounterVec
	RetrievalCacheLookup *prometheus.CounterVec

	// Chat metrics
	ChatRequests        prometheus.Counter
	ChatRequestLatency  prometheus.Histogram
	ChatErrors          *prometheus.CounterVec
	GenerationLatency   prometheus.Histogram
	PersistenceFailures prometheus.Counter
	InFlight            prometheus.Gauge

	// WebSocket metrics
	WebSocketConnections prometheus.Gauge
}

// NewMetrics registers the pipeline metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Admission decisions by tier and outcome (admitted, rejected, failed_open, failed_closed)
		AdmissionDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "personachat_admission_decisions_total",
			Help: "Total number of admission decisions by tier and outcome",
		}, []string{"tier", "outcome"}),

		AdmissionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "personachat_admission_store_errors_total",
			Help: "Total number of quota store errors",
		}),

		RetrievalLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "personachat_retrieval_duration_seconds",
			Help:    "Vector index retrieval latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		RetrievalSnippets: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "personachat_retrieval_snippets",
			Help:    "Number of snippets returned per retrieval",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
		}),

		// Degradations by reason (unavailable, timeout)
		RetrievalDegraded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "personachat_retrieval_degraded_total",
			Help: "Total number of requests answered without retrieval context",
		}, []string{"reason"}),

		RetrievalCacheLookup: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "personachat_retrieval_cache_lookups_total",
			Help: "Retrieval cache lookups by result (hit, miss, error)",
		}, []string{"result"}),

		ChatRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "personachat_chat_requests_total",
			Help: "Total number of chat requests processed",
		}),

		ChatRequestLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "personachat_chat_request_duration_seconds",
			Help:    "Chat request latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}, // generation dominates
		}),

		ChatErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "personachat_chat_errors_total",
			Help: "Total number of chat errors by kind",
		}, []string{"kind"}),

		GenerationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "personachat_generation_duration_seconds",
			Help:    "Generation call latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}),

		PersistenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "personachat_persistence_failures_total",
			Help: "Total number of conversation turns that failed to persist",
		}),

		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "personachat_requests_in_flight",
			Help: "Chat requests currently holding a dispatch slot",
		}),

		WebSocketConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "personachat_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		}),
	}
}

// RecordAdmission records one admission decision
func (m *Metrics) RecordAdmission(tier, outcome string) {
	if m == nil {
		return
	}
	m.AdmissionDecisions.WithLabelValues(tier, outcome).Inc()
}

// RecordAdmissionError records a quota store failure
func (m *Metrics) RecordAdmissionError() {
	if m == nil {
		return
	}
	m.AdmissionErrors.Inc()
}

// RecordRetrieval records retrieval latency and snippet count
func (m *Metrics) RecordRetrieval(seconds float64, snippets int) {
	if m == nil {
		return
	}
	m.RetrievalLatency.Observe(seconds)
	m.RetrievalSnippets.Observe(float64(snippets))
}

// RecordRetrievalDegraded records a request answered without context
func (m *Metrics) RecordRetrievalDegraded(reason string) {
	if m == nil {
		return
	}
	m.RetrievalDegraded.WithLabelValues(reason).Inc()
}

// RecordCacheLookup records a retrieval cache lookup
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.RetrievalCacheLookup.WithLabelValues(result).Inc()
}

// RecordChatRequest records a chat request
func (m *Metrics) RecordChatRequest() {
	if m == nil {
		return
	}
	m.ChatRequests.Inc()
}

// RecordChatLatency records chat request latency
func (m *Metrics) RecordChatLatency(seconds float64) {
	if m == nil {
		return
	}
	m.ChatRequestLatency.Observe(seconds)
}

// RecordChatError records a chat error
func (m *Metrics) RecordChatError(kind ErrorKind) {
	if m == nil {
		return
	}
	m.ChatErrors.WithLabelValues(string(kind)).Inc()
}

// RecordGenerationLatency records generation latency
func (m *Metrics) RecordGenerationLatency(seconds float64) {
	if m == nil {
		return
	}
	m.GenerationLatency.Observe(seconds)
}

// RecordPersistenceFailure records a failed append
func (m *Metrics) RecordPersistenceFailure() {
	if m == nil {
		return
	}
	m.PersistenceFailures.Inc()
}

// IncInFlight marks a dispatch slot as taken
func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

// DecInFlight marks a dispatch slot as released
func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}

// RecordWebSocketConnect records a new WebSocket connection
func (m *Metrics) RecordWebSocketConnect() {
	if m == nil {
		return
	}
	m.WebSocketConnections.Inc()
}

// RecordWebSocketDisconnect records a WebSocket disconnection
func (m *Metrics) RecordWebSocketDisconnect() {
	if m == nil {
		return
	}
	m.WebSocketConnections.Dec()
}
