// Package metrics provides Prometheus metrics for the idle guard:
// input sampling, warning lifecycle, lock triggers, session transitions
// and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Input ──────────────────────────────────────────────────────────────────

// InputSampled counts sampled input events delivered to the guard loop.
var InputSampled = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "idlelock",
	Name:      "input_sampled_total",
	Help:      "Sampled input events handled by the guard loop.",
}, []string{"source"})

// InputDropped counts activity events dropped because the queue was full.
var InputDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "idlelock",
	Name:      "input_dropped_total",
	Help:      "Activity events dropped on a full queue.",
})

// ─── Guard ──────────────────────────────────────────────────────────────────

// GuardState tracks the guard state (0=disabled, 1=armed, 2=warning).
var GuardState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "idlelock",
	Name:      "guard_state",
	Help:      "Current guard state (0=disabled, 1=armed, 2=warning).",
})

// MillisPerTick tracks the calibrated milliseconds per platform tick.
var MillisPerTick = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "idlelock",
	Name:      "calibration_ms_per_tick",
	Help:      "Calibrated milliseconds per platform tick.",
})

// Evaluations counts idle evaluations by outcome.
var Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "idlelock",
	Name:      "evaluations_total",
	Help:      "Idle evaluations by outcome.",
}, []string{"outcome"})

// ─── Warnings ───────────────────────────────────────────────────────────────

// WarningsOpened counts warning prompts shown.
var WarningsOpened = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "idlelock",
	Name:      "warnings_opened_total",
	Help:      "Warning prompts opened.",
})

// WarningsClosed counts warning prompts closed by reason.
var WarningsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "idlelock",
	Name:      "warnings_closed_total",
	Help:      "Warning prompts closed, by reason.",
}, []string{"reason"})

// WarningDuration tracks how long prompts stayed open.
var WarningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "idlelock",
	Name:      "warning_duration_seconds",
	Help:      "Time a warning prompt stayed open.",
	Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
})

// ─── Locks ──────────────────────────────────────────────────────────────────

// LocksTriggered counts lock primitive invocations.
var LocksTriggered = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "idlelock",
	Name:      "locks_triggered_total",
	Help:      "Session locks triggered after the grace period.",
})

// LockFailures counts lock primitive errors.
var LockFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "idlelock",
	Name:      "lock_failures_total",
	Help:      "Session lock primitive failures.",
})

// SessionTransitions counts lock/unlock notifications.
var SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "idlelock",
	Name:      "session_transitions_total",
	Help:      "Session lock/unlock notifications received.",
}, []string{"kind"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "idlelock",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
