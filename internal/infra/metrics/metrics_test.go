package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestInputMetrics(t *testing.T) {
	InputSampled.WithLabelValues("keyboard").Inc()
	InputSampled.WithLabelValues("pointer").Add(3)
	InputDropped.Inc()

	names := gatheredNames(t)
	for _, name := range []string{"idlelock_input_sampled_total", "idlelock_input_dropped_total"} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestGuardMetrics(t *testing.T) {
	GuardState.Set(1)
	MillisPerTick.Set(16)
	Evaluations.WithLabelValues("idle").Inc()

	names := gatheredNames(t)
	expected := []string{
		"idlelock_guard_state",
		"idlelock_calibration_ms_per_tick",
		"idlelock_evaluations_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestWarningAndLockMetrics(t *testing.T) {
	WarningsOpened.Inc()
	WarningsClosed.WithLabelValues("activity").Inc()
	WarningDuration.Observe(2.5)
	LocksTriggered.Inc()
	LockFailures.Inc()
	SessionTransitions.WithLabelValues("session_lock").Inc()

	names := gatheredNames(t)
	expected := []string{
		"idlelock_warnings_opened_total",
		"idlelock_warnings_closed_total",
		"idlelock_warning_duration_seconds",
		"idlelock_locks_triggered_total",
		"idlelock_lock_failures_total",
		"idlelock_session_transitions_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAllMetricsGatherable(t *testing.T) {
	HealthCheckStatus.WithLabelValues("journal").Set(1)
	InputSampled.WithLabelValues("keyboard")
	Evaluations.WithLabelValues("idle")
	WarningsClosed.WithLabelValues("activity")
	SessionTransitions.WithLabelValues("session_lock")

	count := 0
	for name := range gatheredNames(t) {
		if strings.HasPrefix(name, "idlelock_") {
			count++
		}
	}
	if count < 12 {
		t.Errorf("expected at least 12 idlelock_ metrics, got %d", count)
	}
}
