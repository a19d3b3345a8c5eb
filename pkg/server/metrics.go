package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server
type Metrics struct {
	// Session metrics
	activeSessions       prometheus.Gauge
	sessionsCreated      prometheus.Counter
	sessionsDisconnected prometheus.Counter

	// Room metrics
	activeRooms prometheus.Gauge

	// Message type metrics
	requestsReceived *prometheus.CounterVec // by request type
	broadcastFanout  prometheus.Histogram

	// File transfer metrics
	fileBytes *prometheus.CounterVec // by direction: upload/download/relay
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		activeSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "clichat_active_sessions",
				Help: "Current number of active sessions",
			},
		),
		sessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "clichat_sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		sessionsDisconnected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "clichat_sessions_disconnected_total",
				Help: "Total number of sessions disconnected",
			},
		),
		activeRooms: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "clichat_active_rooms",
				Help: "Current number of live rooms",
			},
		),
		requestsReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clichat_requests_received_total",
				Help: "Total number of requests received from clients by type",
			},
			[]string{"type"},
		),
		broadcastFanout: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "clichat_broadcast_fanout",
				Help:    "Number of clients that received each broadcast message",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
			},
		),
		fileBytes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clichat_file_bytes_total",
				Help: "Total decoded file bytes handled by direction",
			},
			[]string{"direction"},
		),
	}
}

// RecordActiveSessions updates the active session gauge
func (m *Metrics) RecordActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

// RecordSessionCreated increments the session creation counter
func (m *Metrics) RecordSessionCreated() {
	m.sessionsCreated.Inc()
}

// RecordSessionDisconnected increments the disconnect counter
func (m *Metrics) RecordSessionDisconnected() {
	m.sessionsDisconnected.Inc()
}

// RecordActiveRooms updates the live room gauge
func (m *Metrics) RecordActiveRooms(count int) {
	m.activeRooms.Set(float64(count))
}

// RecordRequest counts one inbound request by type tag
func (m *Metrics) RecordRequest(reqType string) {
	m.requestsReceived.WithLabelValues(reqType).Inc()
}

// RecordBroadcast records the fanout of one broadcast message
func (m *Metrics) RecordBroadcast(fanout int) {
	m.broadcastFanout.Observe(float64(fanout))
}

// RecordFileBytes counts decoded file bytes by direction
// ("upload", "download", or "relay")
func (m *Metrics) RecordFileBytes(direction string, n int) {
	m.fileBytes.WithLabelValues(direction).Add(float64(n))
}
