package guard

import (
	"github.com/google/uuid"

	"github.com/idlelock/idlelock/internal/domain"
)

// EffectKind enumerates the side effects a transition asks the loop to perform.
type EffectKind int

const (
	EffectOpenPrompt EffectKind = iota
	EffectStartCountdown
	EffectStepPrompt
	EffectStopCountdown
	EffectClosePrompt
	EffectLockSession
)

// String returns the effect name.
func (k EffectKind) String() string {
	switch k {
	case EffectOpenPrompt:
		return "open_prompt"
	case EffectStartCountdown:
		return "start_countdown"
	case EffectStepPrompt:
		return "step_prompt"
	case EffectStopCountdown:
		return "stop_countdown"
	case EffectClosePrompt:
		return "close_prompt"
	case EffectLockSession:
		return "lock_session"
	default:
		return "unknown"
	}
}

// Effect is one side effect produced by a transition. Warning is a copy of
// the session the effect concerns.
type Effect struct {
	Kind    EffectKind
	Warning Warning
	Reason  domain.CloseReason
}

// Warning is the single warning session.
type Warning struct {
	ID        string
	Seq       uint64
	Opened    Instant
	Remaining int
}

// Machine holds all guard state. It is owned by one goroutine; none of its
// methods are safe for concurrent use.
type Machine struct {
	idleSeconds  int
	graceSeconds int

	state         domain.GuardState
	cal           *Calibration
	sessionLocked bool

	lastInteraction uint64
	warning         *Warning
	seq             uint64
	locks           int
}

// NewMachine creates a disabled, uncalibrated machine.
func NewMachine(idleSeconds, graceSeconds int) *Machine {
	return &Machine{
		idleSeconds:  idleSeconds,
		graceSeconds: graceSeconds,
		state:        domain.GuardDisabled,
	}
}

// State returns the current guard state.
func (m *Machine) State() domain.GuardState { return m.state }

// Enabled reports whether idle detection is on (armed or warning).
func (m *Machine) Enabled() bool { return m.state != domain.GuardDisabled }

// Calibration returns the calibration, or nil before it completes.
func (m *Machine) Calibration() *Calibration { return m.cal }

// LastInteraction returns the tick of the last recorded activity.
func (m *Machine) LastInteraction() uint64 { return m.lastInteraction }

// Warning returns the open warning session, if any.
func (m *Machine) Warning() (Warning, bool) {
	if m.warning == nil {
		return Warning{}, false
	}
	return *m.warning, true
}

// Remaining returns the grace seconds left; the full grace period when no
// warning is open.
func (m *Machine) Remaining() int {
	if m.warning == nil {
		return m.graceSeconds
	}
	return m.warning.Remaining
}

// Locks returns how many times the machine has asked for a session lock.
func (m *Machine) Locks() int { return m.locks }

// Seed sets the initial interaction baseline so the first evaluation does
// not measure from tick zero.
func (m *Machine) Seed(tick uint64) {
	m.lastInteraction = tick
}

// Calibrated installs the calibration and arms detection unless the session
// was locked while measuring.
func (m *Machine) Calibrated(cal Calibration) []Effect {
	if m.cal != nil {
		return nil
	}
	m.cal = &cal
	if !m.sessionLocked {
		m.state = domain.GuardArmed
	}
	return nil
}

// Activity records fresh user input and cancels any pending warning.
// While disabled it changes nothing.
func (m *Machine) Activity(now Instant) []Effect {
	if !m.Enabled() {
		return nil
	}
	m.lastInteraction = now.Tick
	return m.destroyWarning(domain.CloseActivity)
}

// CanEvaluate reports whether an idle evaluation would do anything.
func (m *Machine) CanEvaluate() bool {
	return m.cal != nil && m.Enabled()
}

// IsIdle reports whether now is past the idle threshold.
func (m *Machine) IsIdle(now Instant) bool {
	if m.cal == nil {
		return false
	}
	return now.Tick > m.lastInteraction+m.cal.IdleTicks
}

// Evaluate is the idle check run on the evaluation cadence. It is the only
// place a warning session is created.
func (m *Machine) Evaluate(now Instant, engaged bool) []Effect {
	if !m.CanEvaluate() || engaged {
		return nil
	}
	if !m.IsIdle(now) || m.warning != nil {
		return nil
	}
	return m.openWarning(now)
}

// CountdownTick steps the open warning. Ticks from a previous session's
// timer are ignored.
func (m *Machine) CountdownTick(seq uint64) []Effect {
	if m.warning == nil || m.warning.Seq != seq {
		return nil
	}
	m.warning.Remaining--
	effects := []Effect{{Kind: EffectStepPrompt, Warning: *m.warning}}
	if m.warning.Remaining < 1 {
		effects = append(effects, m.lock()...)
	}
	return effects
}

// Dismiss handles the user closing the prompt explicitly.
func (m *Machine) Dismiss() []Effect {
	return m.destroyWarning(domain.CloseDismissed)
}

// SessionLocked disables detection and tears down any warning.
func (m *Machine) SessionLocked() []Effect {
	m.sessionLocked = true
	effects := m.destroyWarning(domain.CloseExternalLock)
	m.state = domain.GuardDisabled
	return effects
}

// SessionUnlocked resets the interaction baseline and re-enables detection
// once calibrated. An unlock means the user is present, so an open warning
// is torn down as if by activity.
func (m *Machine) SessionUnlocked(now Instant) []Effect {
	m.sessionLocked = false
	m.lastInteraction = now.Tick
	effects := m.destroyWarning(domain.CloseActivity)
	if m.cal != nil {
		m.state = domain.GuardArmed
	}
	return effects
}

// Shutdown tears down any warning before the loop exits.
func (m *Machine) Shutdown() []Effect {
	effects := m.destroyWarning(domain.CloseShutdown)
	m.state = domain.GuardDisabled
	return effects
}

func (m *Machine) openWarning(now Instant) []Effect {
	m.seq++
	m.warning = &Warning{
		ID:        uuid.NewString(),
		Seq:       m.seq,
		Opened:    now,
		Remaining: m.graceSeconds,
	}
	m.state = domain.GuardWarning
	return []Effect{
		{Kind: EffectOpenPrompt, Warning: *m.warning},
		{Kind: EffectStartCountdown, Warning: *m.warning},
	}
}

// destroyWarning is the single teardown path. Safe when no warning exists.
func (m *Machine) destroyWarning(reason domain.CloseReason) []Effect {
	if m.warning == nil {
		return nil
	}
	w := *m.warning
	m.warning = nil
	if m.state == domain.GuardWarning {
		m.state = domain.GuardArmed
	}
	return []Effect{
		{Kind: EffectStopCountdown, Warning: w, Reason: reason},
		{Kind: EffectClosePrompt, Warning: w, Reason: reason},
	}
}

func (m *Machine) lock() []Effect {
	m.locks++
	effects := m.destroyWarning(domain.CloseGraceExpired)
	return append(effects, Effect{Kind: EffectLockSession})
}
