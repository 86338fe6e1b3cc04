// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "radiosync_connection_state",
		Help: "Current connection state (active state=1, others 0)",
	}, []string{"state"})

	ConnectionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiosync_connection_transitions_total",
		Help: "Connection state machine transitions",
	}, []string{"from", "to", "event"})

	ReconnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiosync_reconnect_attempts_total",
		Help: "Scheduled reconnection attempts by reason",
	}, []string{"reason"})

	ReconnectRefused = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiosync_reconnect_refused_total",
		Help: "Reconnection requests refused by the scheduler guard",
	}, []string{"guard"})

	ReconnectDelay = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "radiosync_reconnect_delay_seconds",
		Help:    "Computed reconnection backoff delay",
		Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 30, 60, 120},
	})

	DriftSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "radiosync_drift_seconds",
		Help:    "Absolute drift between server position and local estimate",
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 4, 6, 10, 20, 60},
	})

	DriftActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiosync_drift_actions_total",
		Help: "Drift corrector decisions by action",
	}, []string{"action"})

	BufferInterventions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiosync_buffer_interventions_total",
		Help: "Buffer health monitor interventions by action",
	}, []string{"action"})

	BufferAhead = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radiosync_buffer_ahead_seconds",
		Help: "Seconds buffered ahead of the playhead at the last check",
	})

	MediaFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiosync_media_faults_total",
		Help: "Media faults reported by the audio primitive by code and outcome",
	}, []string{"code", "outcome"})

	TrackChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radiosync_track_changes_total",
		Help: "Observed track identity changes",
	})

	StaleResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiosync_stale_results_total",
		Help: "Asynchronous results discarded because their session epoch was superseded",
	}, []string{"kind"})

	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiosync_fetch_total",
		Help: "Now-playing and heartbeat fetches by endpoint and result",
	}, []string{"endpoint", "result"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radiosync_fetch_duration_seconds",
		Help:    "Latency of now-playing and heartbeat fetches",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})
)

var connectionStates = []string{"disconnected", "connecting", "connected", "reconnecting", "error"}

// SetConnectionState records the active connection state.
func SetConnectionState(state string) {
	for _, s := range connectionStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		ConnectionState.WithLabelValues(s).Set(value)
	}
}

// RecordTransition counts a state machine transition.
func RecordTransition(from, to, event string) {
	ConnectionTransitions.WithLabelValues(from, to, event).Inc()
	SetConnectionState(to)
}

// RecordReconnectScheduled counts an attempt and observes its delay.
func RecordReconnectScheduled(reason string, delay time.Duration) {
	ReconnectAttempts.WithLabelValues(reason).Inc()
	ReconnectDelay.Observe(delay.Seconds())
}

// RecordReconnectRefused counts a refused reconnection request.
func RecordReconnectRefused(guard string) {
	ReconnectRefused.WithLabelValues(guard).Inc()
}

// ObserveDrift records a drift evaluation.
func ObserveDrift(drift float64, action string) {
	DriftSeconds.Observe(math.Abs(drift))
	DriftActions.WithLabelValues(action).Inc()
}

// RecordBufferIntervention counts a buffer ladder action.
func RecordBufferIntervention(action string) {
	BufferInterventions.WithLabelValues(action).Inc()
}

// SetBufferAhead records the buffered seconds seen by the last health check.
func SetBufferAhead(seconds float64) {
	BufferAhead.Set(seconds)
}

// RecordMediaFault counts a media fault by code and how the engine responded to it.
func RecordMediaFault(code, outcome string) {
	MediaFaults.WithLabelValues(code, outcome).Inc()
}

// RecordStaleResult counts a discarded asynchronous completion.
func RecordStaleResult(kind string) {
	StaleResults.WithLabelValues(kind).Inc()
}

// ObserveFetch records the outcome of a collaborator fetch.
func ObserveFetch(endpoint string, err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	FetchTotal.WithLabelValues(endpoint, result).Inc()
	FetchDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}
