// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

// Package metrics holds the Prometheus collectors for TVShim.
//
// Collectors are registered on the default registry through promauto and
// exposed by the /metrics route.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the bridge and monitor collectors.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeTimeout  = "timeout"
	OutcomeRejected = "rejected"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Device Bridge Metrics
	BridgeInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_invocations_total",
			Help: "Total number of device-bridge tool invocations",
		},
		[]string{"command", "outcome"}, // outcome: success, failure, timeout, rejected
	)

	BridgeInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_invocation_duration_seconds",
			Help:    "Duration of device-bridge tool invocations",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
		},
		[]string{"command"},
	)

	DeviceActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_actions_total",
			Help: "Device operations by action and outcome",
		},
		[]string{"action", "outcome"}, // action: connect, switch_input, play_video, send_key, control, ...
	)

	VideoAlternativeUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_video_alternative_used_total",
			Help: "Which video command alternative (0-based) first succeeded",
		},
		[]string{"profile", "index"},
	)

	// Rental Monitor Metrics
	MonitorActiveTimers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "monitor_active_timers",
			Help: "Current number of armed rental timers",
		},
	)

	MonitorTimersStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_timers_started_total",
			Help: "Total number of rental timers armed",
		},
	)

	MonitorTimersCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_timers_cancelled_total",
			Help: "Total number of rental timers cancelled before firing",
		},
		[]string{"reason"}, // stopped, replaced, disconnected, manual
	)

	MonitorTimeoutsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_timeouts_fired_total",
			Help: "Total number of timeout actions run",
		},
		[]string{"outcome"},
	)

	MonitorSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "monitor_subscriptions",
			Help: "Current number of open rental event subscriptions",
		},
	)

	MonitorEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full",
		},
	)

	// Audit Metrics
	AuditEventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_recorded_total",
			Help: "Audit events written to the trail",
		},
		[]string{"type"},
	)

	AuditEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Audit events dropped because the write buffer was full",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBridgeInvocation records one tool invocation.
func RecordBridgeInvocation(command, outcome string, duration time.Duration) {
	BridgeInvocations.WithLabelValues(command, outcome).Inc()
	BridgeInvocationDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordDeviceAction records the outcome of a device operation.
func RecordDeviceAction(action string, success bool) {
	DeviceActions.WithLabelValues(action, outcomeLabel(success)).Inc()
}

// RecordTimeoutFired records a completed timeout action.
func RecordTimeoutFired(success bool) {
	MonitorTimeoutsFired.WithLabelValues(outcomeLabel(success)).Inc()
}

func outcomeLabel(success bool) string {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
