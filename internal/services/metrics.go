package services

import (
	"salespilot/internal/autopilot"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Detection metrics
	DetectionRuns       prometheus.Counter
	DetectionRunLatency prometheus.Histogram
	DetectorErrors      *prometheus.CounterVec
	DuplicatesSkipped   prometheus.Counter

	// Proposal lifecycle metrics
	ProposalsCreated  *prometheus.CounterVec
	ProposalsDecided  *prometheus.CounterVec
	AutoCompleted     prometheus.Counter
	WatchdogTimeouts  prometheus.Counter
	ProposalsExpired  prometheus.Counter
	ProposalsUnsnooze prometheus.Counter

	// WebSocket metrics
	WebSocketConnections prometheus.Gauge
}

var (
	_ autopilot.EngineMetrics    = (*Metrics)(nil)
	_ autopilot.LifecycleMetrics = (*Metrics)(nil)
)

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		DetectionRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salespilot_detection_runs_total",
			Help: "Total number of detection runs executed",
		}),

		DetectionRunLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "salespilot_detection_run_duration_seconds",
			Help:    "Detection run latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),

		DetectorErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "salespilot_detector_errors_total",
			Help: "Total number of detector failures by detector type",
		}, []string{"detector"}),

		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salespilot_proposal_duplicates_skipped_total",
			Help: "Total number of candidate proposals dropped as duplicates",
		}),

		ProposalsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "salespilot_proposals_created_total",
			Help: "Total number of proposals created by type",
		}, []string{"type"}),

		ProposalsDecided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "salespilot_proposals_decided_total",
			Help: "Total number of proposal decisions by action",
		}, []string{"action"}), // accept, decline, snooze, retry, complete_inline

		AutoCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salespilot_proposals_auto_completed_total",
			Help: "Total number of proposals auto-completed by reconciliation",
		}),

		WatchdogTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salespilot_watchdog_timeouts_total",
			Help: "Total number of stuck executions failed by the watchdog",
		}),

		ProposalsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salespilot_proposals_expired_total",
			Help: "Total number of proposals expired by the sweep",
		}),

		ProposalsUnsnooze: promauto.NewCounter(prometheus.CounterOpts{
			Name: "salespilot_proposals_unsnoozed_total",
			Help: "Total number of proposals re-surfaced by the unsnooze sweep",
		}),

		WebSocketConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "salespilot_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordDetectionRun records one detection run and its latency
func (m *Metrics) RecordDetectionRun(seconds float64) {
	m.DetectionRuns.Inc()
	m.DetectionRunLatency.Observe(seconds)
}

// RecordProposalCreated records a created proposal
func (m *Metrics) RecordProposalCreated(proposalType string) {
	m.ProposalsCreated.WithLabelValues(proposalType).Inc()
}

// RecordDetectorError records a detector failure
func (m *Metrics) RecordDetectorError(detector string) {
	m.DetectorErrors.WithLabelValues(detector).Inc()
}

// RecordDuplicateSkipped records a candidate absorbed by deduplication
func (m *Metrics) RecordDuplicateSkipped() {
	m.DuplicatesSkipped.Inc()
}

// RecordProposalDecided records a user decision
func (m *Metrics) RecordProposalDecided(action string) {
	m.ProposalsDecided.WithLabelValues(action).Inc()
}

// RecordAutoCompleted records a reconciliation auto-completion
func (m *Metrics) RecordAutoCompleted() {
	m.AutoCompleted.Inc()
}

// RecordWatchdogTimeout records a stuck execution failed by the watchdog
func (m *Metrics) RecordWatchdogTimeout() {
	m.WatchdogTimeouts.Inc()
}

// RecordExpired records proposals expired by the sweep
func (m *Metrics) RecordExpired(count int64) {
	m.ProposalsExpired.Add(float64(count))
}

// RecordUnsnoozed records proposals re-surfaced by the unsnooze sweep
func (m *Metrics) RecordUnsnoozed(count int64) {
	m.ProposalsUnsnooze.Add(float64(count))
}

// RecordWebSocketConnect records a new WebSocket connection
func (m *Metrics) RecordWebSocketConnect() {
	m.WebSocketConnections.Inc()
}

// RecordWebSocketDisconnect records a WebSocket disconnection
func (m *Metrics) RecordWebSocketDisconnect() {
	m.WebSocketConnections.Dec()
}
