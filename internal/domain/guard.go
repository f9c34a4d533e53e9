// Package domain holds the pure types shared by the idle guard, its
// platform adapters and the outer surfaces (CLI, API, journal).
package domain

import (
	"fmt"
	"time"
)

// GuardState is the explicit state of the idle guard.
type GuardState int

const (
	GuardDisabled GuardState = iota // Uncalibrated or session locked
	GuardArmed                      // Watching for idle
	GuardWarning                    // Countdown prompt open
)

// String returns the human-readable state name.
func (s GuardState) String() string {
	switch s {
	case GuardDisabled:
		return "disabled"
	case GuardArmed:
		return "armed"
	case GuardWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// EventKind enumerates everything the guard loop dispatches on.
type EventKind int

const (
	KeyboardActivity EventKind = iota
	PointerActivity
	EvaluateIdle
	CalibrateTick
	StepCountdown
	SessionLock
	SessionUnlock
	PromptDismissed
)

// String returns the event name used in logs and metrics labels.
func (k EventKind) String() string {
	switch k {
	case KeyboardActivity:
		return "keyboard"
	case PointerActivity:
		return "pointer"
	case EvaluateIdle:
		return "evaluate"
	case CalibrateTick:
		return "calibrate"
	case StepCountdown:
		return "countdown"
	case SessionLock:
		return "session_lock"
	case SessionUnlock:
		return "session_unlock"
	case PromptDismissed:
		return "dismissed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the event by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes an event name produced by MarshalText.
func (k *EventKind) UnmarshalText(text []byte) error {
	v, ok := ParseEventKind(string(text))
	if !ok {
		return fmt.Errorf("unknown event kind %q", text)
	}
	*k = v
	return nil
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(s string) (EventKind, bool) {
	for k := KeyboardActivity; k <= PromptDismissed; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// IsActivity reports whether the event originates from user input.
func (k EventKind) IsActivity() bool {
	return k == KeyboardActivity || k == PointerActivity
}

// Event is a single unit of work for the guard loop.
type Event struct {
	Kind EventKind
	Seq  uint64 // countdown generation; zero for everything else
}

// CloseReason records why a warning session ended.
type CloseReason string

const (
	CloseActivity     CloseReason = "activity"
	CloseDismissed    CloseReason = "dismissed"
	CloseGraceExpired CloseReason = "locked"
	CloseExternalLock CloseReason = "external_lock"
	CloseShutdown     CloseReason = "shutdown"
)

// WarningRecord is the journal entry for one warning session.
type WarningRecord struct {
	ID          string      `json:"id"`
	OpenedAt    time.Time   `json:"opened_at"`
	ClosedAt    time.Time   `json:"closed_at"`
	Reason      CloseReason `json:"reason"`
	GraceSecs   int         `json:"grace_seconds"`
	Remaining   int         `json:"remaining_seconds"`
	IdleSeconds int         `json:"idle_seconds"`
}

// Duration returns how long the prompt was on screen.
func (r WarningRecord) Duration() time.Duration {
	if r.ClosedAt.Before(r.OpenedAt) {
		return 0
	}
	return r.ClosedAt.Sub(r.OpenedAt)
}

// TransitionRecord is the journal entry for a session lock/unlock.
type TransitionRecord struct {
	Kind EventKind `json:"kind"`
	At   time.Time `json:"at"`
}

// Status is a point-in-time view of the guard, safe to hand to other goroutines.
type Status struct {
	State            string    `json:"state"`
	Calibrated       bool      `json:"calibrated"`
	MillisPerTick    float64   `json:"ms_per_tick"`
	IdleThreshold    int       `json:"idle_seconds"`
	GracePeriod      int       `json:"grace_seconds"`
	IdleTicks        uint64    `json:"idle_ticks"`
	GraceTicks       uint64    `json:"grace_ticks"`
	LastInteraction  uint64    `json:"last_interaction_tick"`
	CurrentTick      uint64    `json:"current_tick"`
	IdleFor          float64   `json:"idle_for_seconds"`
	WarningID        string    `json:"warning_id,omitempty"`
	RemainingSeconds int       `json:"remaining_seconds"`
	HookCalls        uint64    `json:"hook_calls"`
	LocksTriggered   int       `json:"locks_triggered"`
	StartedAt        time.Time `json:"started_at"`
}
