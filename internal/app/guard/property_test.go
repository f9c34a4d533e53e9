package guard

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/idlelock/idlelock/internal/domain"
)

type machineOp int

const (
	opActivity machineOp = iota
	opEvaluate
	opEvaluateEngaged
	opCountdown
	opStaleCountdown
	opDismiss
	opLock
	opUnlock
	opAdvance
)

// countdownModel tracks start/stop effects the way the loop does.
type countdownModel struct {
	running bool
	seq     uint64
	locks   int
}

func (c *countdownModel) apply(t *rapid.T, effects []Effect) {
	for _, e := range effects {
		switch e.Kind {
		case EffectStartCountdown:
			if c.running {
				t.Fatalf("countdown started twice")
			}
			c.running = true
			c.seq = e.Warning.Seq
		case EffectStopCountdown:
			c.running = false
		case EffectLockSession:
			c.locks++
		}
	}
}

func TestMachine_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idle := rapid.IntRange(1, 600).Draw(t, "idle")
		grace := rapid.IntRange(1, 30).Draw(t, "grace")
		ms := rapid.Float64Range(0.5, 2000).Draw(t, "msPerTick")
		calibrateFirst := rapid.Bool().Draw(t, "calibrateFirst")

		m := NewMachine(idle, grace)
		tick := uint64(1000)
		m.Seed(tick)
		if calibrateFirst {
			m.Calibrated(NewCalibration(ms, idle, grace))
		}

		var cd countdownModel
		ops := rapid.SliceOfN(rapid.IntRange(int(opActivity), int(opAdvance)), 1, 200).Draw(t, "ops")
		for i, raw := range ops {
			wasEnabled := m.Enabled()
			prevLast := m.LastInteraction()
			now := Instant{Tick: tick}

			switch machineOp(raw) {
			case opActivity:
				cd.apply(t, m.Activity(now))
				if wasEnabled && m.LastInteraction() != tick {
					t.Fatalf("op %d: LastInteraction() = %d, want %d", i, m.LastInteraction(), tick)
				}
				if !wasEnabled && m.LastInteraction() != prevLast {
					t.Fatalf("op %d: disabled activity moved LastInteraction", i)
				}
			case opEvaluate:
				cd.apply(t, m.Evaluate(now, false))
			case opEvaluateEngaged:
				if effects := m.Evaluate(now, true); len(effects) != 0 {
					t.Fatalf("op %d: engaged evaluation produced %v", i, effects)
				}
			case opCountdown:
				if cd.running {
					cd.apply(t, m.CountdownTick(cd.seq))
				}
			case opStaleCountdown:
				if effects := m.CountdownTick(cd.seq + 1000); len(effects) != 0 {
					t.Fatalf("op %d: stale countdown produced %v", i, effects)
				}
			case opDismiss:
				cd.apply(t, m.Dismiss())
			case opLock:
				cd.apply(t, m.SessionLocked())
			case opUnlock:
				cd.apply(t, m.SessionUnlocked(now))
			case opAdvance:
				tick += rapid.Uint64Range(1, 1<<20).Draw(t, "ticks")
			}

			_, open := m.Warning()
			if open != (m.State() == domain.GuardWarning) {
				t.Fatalf("op %d: warning open = %v in state %v", i, open, m.State())
			}
			if open != cd.running {
				t.Fatalf("op %d: warning open = %v, countdown running = %v", i, open, cd.running)
			}
			if m.Calibration() == nil && m.Enabled() {
				t.Fatalf("op %d: enabled without calibration", i)
			}
			if r := m.Remaining(); r < 0 || r > grace {
				t.Fatalf("op %d: Remaining() = %d outside [0, %d]", i, r, grace)
			}
			if m.Locks() != cd.locks {
				t.Fatalf("op %d: Locks() = %d, effects requested %d", i, m.Locks(), cd.locks)
			}
		}
	})
}

func TestMachine_LastInteractionMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewMachine(60, 5)
		m.Calibrated(NewCalibration(16, 60, 5))

		tick := uint64(0)
		last := m.LastInteraction()
		steps := rapid.SliceOfN(rapid.Uint64Range(1, 1<<16), 1, 100).Draw(t, "steps")
		for _, step := range steps {
			tick += step
			m.Activity(Instant{Tick: tick})
			if m.LastInteraction() <= last {
				t.Fatalf("LastInteraction() = %d, not after %d", m.LastInteraction(), last)
			}
			last = m.LastInteraction()
		}
	})
}

func TestMachine_DisabledPassThrough(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewMachine(60, 5)
		m.Seed(rapid.Uint64Range(0, 1<<40).Draw(t, "seed"))
		if rapid.Bool().Draw(t, "locked") {
			m.Calibrated(NewCalibration(16, 60, 5))
			m.SessionLocked()
		}
		before := m.LastInteraction()

		n := rapid.IntRange(1, 50).Draw(t, "events")
		for i := 0; i < n; i++ {
			tick := rapid.Uint64Range(0, 1<<50).Draw(t, "tick")
			if effects := m.Activity(Instant{Tick: tick}); len(effects) != 0 {
				t.Fatalf("disabled activity produced %v", effects)
			}
			if effects := m.Evaluate(Instant{Tick: tick}, false); len(effects) != 0 {
				t.Fatalf("disabled evaluation produced %v", effects)
			}
		}
		if m.LastInteraction() != before {
			t.Fatalf("LastInteraction() = %d, want %d", m.LastInteraction(), before)
		}
		if m.State() != domain.GuardDisabled {
			t.Fatalf("State() = %v, want disabled", m.State())
		}
	})
}
