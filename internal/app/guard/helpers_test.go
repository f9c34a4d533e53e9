package guard

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/idlelock/idlelock/internal/domain"
	"github.com/idlelock/idlelock/internal/infra/platform/fake"
)

// fakeClock is a manually advanced wall clock.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
}

// manualTimer is one registration with the manual scheduler.
type manualTimer struct {
	ev      domain.Event
	every   bool
	d       time.Duration
	stopped bool
}

// manualScheduler records timers; tests fire them explicitly.
type manualScheduler struct {
	timers []*manualTimer
}

func (s *manualScheduler) Every(d time.Duration, ev domain.Event) func() {
	t := &manualTimer{ev: ev, every: true, d: d}
	s.timers = append(s.timers, t)
	return func() { t.stopped = true }
}

func (s *manualScheduler) After(d time.Duration, ev domain.Event) func() {
	t := &manualTimer{ev: ev, d: d}
	s.timers = append(s.timers, t)
	return func() { t.stopped = true }
}

// active returns the running timers for an event kind.
func (s *manualScheduler) active(kind domain.EventKind) []*manualTimer {
	var out []*manualTimer
	for _, t := range s.timers {
		if t.ev.Kind == kind && !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

// harness drives a Loop synchronously, without Run.
type harness struct {
	t        *testing.T
	loop     *Loop
	platform *fake.Platform
	clock    *fakeClock
	sched    *manualScheduler
}

func quietLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newHarness(t *testing.T, idleSeconds, graceSeconds int) *harness {
	t.Helper()
	p := &fake.Platform{LoopBackLock: true}
	p.SetTick(1000)

	l := NewLoop(DefaultConfig(idleSeconds, graceSeconds), p, nil)
	clock := newFakeClock()
	sched := &manualScheduler{}
	l.clock = clock
	l.sched = sched
	l.SetLogger(quietLogger())

	if err := p.Start(l); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	l.start()
	return &harness{t: t, loop: l, platform: p, clock: clock, sched: sched}
}

// calibrate advances ticks and wall time over the calibration window so the
// measured rate is msPerTick, then fires the calibration timer.
func (h *harness) calibrate(msPerTick float64) {
	h.t.Helper()
	window := h.loop.cfg.CalibrationWindow
	h.clock.Advance(window)
	h.platform.Advance(uint64(float64(window/time.Millisecond) / msPerTick))
	h.fire(domain.CalibrateTick)
	if h.loop.machine.Calibration() == nil {
		h.t.Fatal("calibration did not complete")
	}
}

// fire dispatches the event of every active timer of the given kind.
func (h *harness) fire(kind domain.EventKind) {
	h.t.Helper()
	timers := h.sched.active(kind)
	if len(timers) == 0 {
		h.t.Fatalf("no active %s timer", kind)
	}
	for _, t := range timers {
		if !t.every {
			t.stopped = true
		}
		h.loop.Dispatch(t.ev)
	}
	h.pump()
}

// pump dispatches everything queued by the platform.
func (h *harness) pump() {
	for {
		select {
		case ev := <-h.loop.control:
			h.loop.Dispatch(ev)
		case ev := <-h.loop.activity:
			h.loop.Dispatch(ev)
		default:
			return
		}
	}
}

// activity delivers one sampled input event.
func (h *harness) activity(kind domain.EventKind) {
	h.loop.Report(kind)
	h.pump()
}

// advance moves ticks and wall time together at the calibrated rate.
func (h *harness) advance(ticks uint64) {
	h.platform.Advance(ticks)
	if cal := h.loop.machine.Calibration(); cal != nil {
		h.clock.Advance(time.Duration(float64(ticks) * cal.MillisPerTick * float64(time.Millisecond)))
	}
}
