// Package telemetry exposes the agent's Prometheus metrics, registered once
// at package init and served by Handler. None of the agent's workers
// record to these metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sync metrics
	SyncAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ajime_sync_attempts_total",
			Help: "Total number of workflow sync attempts by outcome",
		},
		[]string{"outcome"},
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ajime_sync_duration_seconds",
			Help:    "Time taken to complete a workflow sync",
			Buckets: prometheus.DefBuckets,
		},
	)

	WorkflowsCached = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ajime_workflows_cached",
			Help: "Number of workflows currently held in the local cache",
		},
	)

	SyncErrorStreak = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ajime_sync_error_streak",
			Help: "Consecutive sync failures since the last success",
		},
	)

	// Deployment metrics
	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ajime_deployments_total",
			Help: "Total number of deployments executed by type and outcome",
		},
		[]string{"deployment_type", "outcome"},
	)

	DeploymentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ajime_deployment_duration_seconds",
			Help:    "Time taken to execute a deployment by type",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"deployment_type"},
	)

	DeploymentFsmTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ajime_deployment_fsm_transitions_total",
			Help: "Total number of deployment FSM transitions by event",
		},
		[]string{"event"},
	)

	// Relay metrics
	RelayConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ajime_relay_connections_total",
			Help: "Total number of relay connect attempts by outcome",
		},
		[]string{"outcome"},
	)

	RelayConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ajime_relay_connected",
			Help: "Whether the relay websocket is currently connected (1) or not (0)",
		},
	)

	RelayCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ajime_relay_commands_total",
			Help: "Total number of relay commands handled by command type and outcome",
		},
		[]string{"command_type", "outcome"},
	)

	// Terminal metrics
	TerminalSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ajime_terminal_sessions_active",
			Help: "Number of currently open PTY terminal sessions",
		},
	)

	// Token/auth metrics
	TokenRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ajime_token_refreshes_total",
			Help: "Total number of device token refresh attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Scanner metrics
	NetworkScansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ajime_network_scans_total",
			Help: "Total number of subnet scans performed",
		},
	)

	DevicesDiscovered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ajime_devices_discovered",
			Help: "Number of devices found by the most recent subnet scan",
		},
	)

	// Worker metrics
	WorkerTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ajime_worker_ticks_total",
			Help: "Total number of worker ticks by worker name and outcome",
		},
		[]string{"worker", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		SyncAttemptsTotal,
		SyncDuration,
		WorkflowsCached,
		SyncErrorStreak,
		DeploymentsTotal,
		DeploymentDuration,
		DeploymentFsmTransitionsTotal,
		RelayConnectionsTotal,
		RelayConnected,
		RelayCommandsTotal,
		TerminalSessionsActive,
		TokenRefreshesTotal,
		NetworkScansTotal,
		DevicesDiscovered,
		WorkerTicksTotal,
	)
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times an in-flight operation for later recording to a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram vec.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
