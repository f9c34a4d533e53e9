package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/idlelock/idlelock/internal/domain"
	"github.com/idlelock/idlelock/internal/infra/metrics"
)

// Config controls guard timing. Zero durations take the defaults.
type Config struct {
	IdleSeconds          int
	GraceSeconds         int
	EvaluateInterval     time.Duration
	CalibrationWindow    time.Duration
	CountdownInterval    time.Duration
	SamplingStride       int
	DefaultMillisPerTick float64
}

// DefaultConfig returns the standard cadences for the given thresholds.
func DefaultConfig(idleSeconds, graceSeconds int) Config {
	return Config{
		IdleSeconds:          idleSeconds,
		GraceSeconds:         graceSeconds,
		EvaluateInterval:     10 * time.Second,
		CalibrationWindow:    10 * time.Second,
		CountdownInterval:    time.Second,
		SamplingStride:       SamplingStride,
		DefaultMillisPerTick: DefaultMillisPerTick,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.IdleSeconds, c.GraceSeconds)
	if c.EvaluateInterval <= 0 {
		c.EvaluateInterval = d.EvaluateInterval
	}
	if c.CalibrationWindow <= 0 {
		c.CalibrationWindow = d.CalibrationWindow
	}
	if c.CountdownInterval <= 0 {
		c.CountdownInterval = d.CountdownInterval
	}
	if c.SamplingStride <= 0 {
		c.SamplingStride = d.SamplingStride
	}
	if c.DefaultMillisPerTick <= 0 {
		c.DefaultMillisPerTick = d.DefaultMillisPerTick
	}
	return c
}

const (
	activityQueueSize = 64
	controlQueueSize  = 64
	timerQueueSize    = 8

	// debugEvery throttles per-activity debug logging.
	debugEvery = 1500 * time.Millisecond
)

// Loop is the single goroutine that owns the Machine. Platform callbacks,
// timers and status queries all reach it through channels, so no guard
// state is ever touched concurrently.
type Loop struct {
	cfg        Config
	machine    *Machine
	calibrator *Calibrator
	sampler    *Sampler
	platform   domain.Platform
	journal    domain.Journal
	clock      Clock
	sched      Scheduler
	log        *logrus.Entry

	activity chan domain.Event
	control  chan domain.Event
	timers   chan domain.Event
	queries  chan func()
	done     chan struct{}

	stopCountdown func()
	stopEvaluate  func()
	stopCalibrate func()

	startedAt time.Time
	lastDebug time.Time
}

// NewLoop wires a guard loop to a platform. journal may be nil.
func NewLoop(cfg Config, p domain.Platform, j domain.Journal) *Loop {
	cfg = cfg.withDefaults()
	if j == nil {
		j = nopJournal{}
	}
	l := &Loop{
		cfg:        cfg,
		machine:    NewMachine(cfg.IdleSeconds, cfg.GraceSeconds),
		calibrator: NewCalibrator(cfg.CalibrationWindow, cfg.DefaultMillisPerTick),
		sampler:    NewSampler(cfg.SamplingStride),
		platform:   p,
		journal:    j,
		clock:      systemClock{},
		log:        logrus.WithField("component", "guard"),
		activity:   make(chan domain.Event, activityQueueSize),
		control:    make(chan domain.Event, controlQueueSize),
		timers:     make(chan domain.Event, timerQueueSize),
		queries:    make(chan func()),
		done:       make(chan struct{}),
	}
	l.sched = newTimerScheduler(l.timers, l.done)
	return l
}

// SetLogger replaces the loop's logger.
func (l *Loop) SetLogger(log *logrus.Entry) { l.log = log }

// Done is closed once Run has returned and the platform is released.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Run registers with the platform and processes events until ctx is
// cancelled. A platform start failure is returned immediately.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.platform.Start(l); err != nil {
		if cerr := l.platform.Close(); cerr != nil {
			l.log.WithError(cerr).Warn("platform cleanup after failed start")
		}
		close(l.done)
		return fmt.Errorf("start platform: %w", err)
	}

	l.start()
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-l.control:
			l.Dispatch(ev)
		case ev := <-l.activity:
			l.Dispatch(ev)
		case ev := <-l.timers:
			l.Dispatch(ev)
		case q := <-l.queries:
			q()
		}
	}
}

func (l *Loop) start() {
	now := l.now()
	l.startedAt = now.Wall
	l.machine.Seed(now.Tick)
	l.calibrator.Begin(now)
	l.stopCalibrate = l.sched.After(l.calibrator.Window(), domain.Event{Kind: domain.CalibrateTick})
	l.stopEvaluate = l.sched.Every(l.cfg.EvaluateInterval, domain.Event{Kind: domain.EvaluateIdle})
	metrics.GuardState.Set(float64(l.machine.State()))

	l.log.WithFields(logrus.Fields{
		"idle_seconds":  l.cfg.IdleSeconds,
		"grace_seconds": l.cfg.GraceSeconds,
		"tick":          now.Tick,
	}).Info("guard started")
}

func (l *Loop) stop() {
	l.apply(l.machine.Shutdown())
	for _, stop := range []func(){l.stopCalibrate, l.stopEvaluate, l.stopCountdown} {
		if stop != nil {
			stop()
		}
	}
	l.stopCountdown = nil
	if err := l.platform.Close(); err != nil {
		l.log.WithError(err).Error("platform cleanup failed")
	}
	close(l.done)
	l.log.Info("guard stopped")
}

// ─── ActivitySink ───────────────────────────────────────────────────────────

// Observe counts a raw input event and forwards one in SamplingStride.
func (l *Loop) Observe(kind domain.EventKind) {
	if !l.sampler.Sample() {
		return
	}
	l.Report(kind)
}

// Report forwards an already rate-limited input event. When the queue is
// full the event is dropped; the queued ones carry the same information.
func (l *Loop) Report(kind domain.EventKind) {
	select {
	case l.activity <- domain.Event{Kind: kind}:
	default:
		metrics.InputDropped.Inc()
	}
}

// Post forwards a session or prompt event without blocking the caller.
func (l *Loop) Post(kind domain.EventKind) {
	select {
	case l.control <- domain.Event{Kind: kind}:
	default:
		l.log.WithField("event", kind.String()).Error("control queue full, event dropped")
	}
}

// ─── Dispatch ───────────────────────────────────────────────────────────────

// Dispatch routes one event to the machine and performs the resulting
// effects. Must only be called from the loop goroutine.
func (l *Loop) Dispatch(ev domain.Event) {
	now := l.now()
	var effects []Effect

	switch ev.Kind {
	case domain.KeyboardActivity, domain.PointerActivity:
		metrics.InputSampled.WithLabelValues(ev.Kind.String()).Inc()
		l.debugActivity(ev.Kind, now)
		effects = l.machine.Activity(now)

	case domain.EvaluateIdle:
		effects = l.evaluate(now)

	case domain.CalibrateTick:
		effects = l.calibrate(now)

	case domain.StepCountdown:
		effects = l.machine.CountdownTick(ev.Seq)

	case domain.SessionLock:
		l.log.Info("session locked, disabling detection")
		metrics.SessionTransitions.WithLabelValues(ev.Kind.String()).Inc()
		l.journal.RecordTransition(domain.TransitionRecord{Kind: ev.Kind, At: now.Wall})
		effects = l.machine.SessionLocked()

	case domain.SessionUnlock:
		l.log.Info("session unlocked, enabling detection")
		metrics.SessionTransitions.WithLabelValues(ev.Kind.String()).Inc()
		l.journal.RecordTransition(domain.TransitionRecord{Kind: ev.Kind, At: now.Wall})
		effects = l.machine.SessionUnlocked(now)

	case domain.PromptDismissed:
		effects = l.machine.Dismiss()

	default:
		l.log.WithField("event", int(ev.Kind)).Warn("unknown event")
	}

	l.apply(effects)
	metrics.GuardState.Set(float64(l.machine.State()))
}

func (l *Loop) evaluate(now Instant) []Effect {
	if !l.machine.CanEvaluate() {
		metrics.Evaluations.WithLabelValues("inactive").Inc()
		return nil
	}
	if l.platform.UserEngaged() {
		l.log.Debug("user engaged, skipping idle evaluation")
		metrics.Evaluations.WithLabelValues("engaged").Inc()
		return nil
	}

	idle := l.machine.IsIdle(now)
	l.log.WithFields(logrus.Fields{
		"current": now.Tick,
		"last":    l.machine.LastInteraction(),
		"target":  l.machine.LastInteraction() + l.machine.Calibration().IdleTicks,
	}).Debug("evaluate idle")

	if !idle {
		metrics.Evaluations.WithLabelValues("active").Inc()
		return nil
	}
	metrics.Evaluations.WithLabelValues("idle").Inc()
	return l.machine.Evaluate(now, false)
}

func (l *Loop) calibrate(now Instant) []Effect {
	cal, ok := l.calibrator.Complete(now, l.cfg.IdleSeconds, l.cfg.GraceSeconds)
	if !ok {
		return nil
	}
	l.stopCalibrate = nil

	entry := l.log.WithFields(logrus.Fields{
		"ms_per_tick": cal.MillisPerTick,
		"idle_ticks":  cal.IdleTicks,
		"grace_ticks": cal.GraceTicks,
	})
	if cal.FellBack {
		entry.Warn("tick measurement unusable, using default rate")
	} else {
		entry.Info("calibrated")
	}
	metrics.MillisPerTick.Set(cal.MillisPerTick)
	return l.machine.Calibrated(cal)
}

// ─── Effects ────────────────────────────────────────────────────────────────

func (l *Loop) apply(effects []Effect) {
	for _, e := range effects {
		switch e.Kind {
		case EffectOpenPrompt:
			l.log.WithField("warning", e.Warning.ID).Info("idle detected, opening warning")
			metrics.WarningsOpened.Inc()
			if err := l.platform.OpenPrompt(l.cfg.GraceSeconds); err != nil {
				// The countdown still runs: a missing prompt must not prevent the lock.
				l.log.WithError(err).Error("open warning prompt")
			}

		case EffectStartCountdown:
			if l.stopCountdown != nil {
				l.stopCountdown()
			}
			l.stopCountdown = l.sched.Every(l.cfg.CountdownInterval,
				domain.Event{Kind: domain.StepCountdown, Seq: e.Warning.Seq})

		case EffectStepPrompt:
			l.log.WithField("remaining", e.Warning.Remaining).Debug("countdown step")
			l.platform.StepPrompt(e.Warning.Remaining)

		case EffectStopCountdown:
			if l.stopCountdown != nil {
				l.stopCountdown()
				l.stopCountdown = nil
			}

		case EffectClosePrompt:
			l.platform.ClosePrompt()
			l.closeWarning(e)

		case EffectLockSession:
			l.log.Info("grace period exhausted, locking session")
			metrics.LocksTriggered.Inc()
			if err := l.platform.LockSession(); err != nil {
				metrics.LockFailures.Inc()
				l.log.WithError(err).Error("lock session")
			}
		}
	}
}

func (l *Loop) closeWarning(e Effect) {
	closedAt := l.clock.Now()
	rec := domain.WarningRecord{
		ID:          e.Warning.ID,
		OpenedAt:    e.Warning.Opened.Wall,
		ClosedAt:    closedAt,
		Reason:      e.Reason,
		GraceSecs:   l.cfg.GraceSeconds,
		Remaining:   e.Warning.Remaining,
		IdleSeconds: l.cfg.IdleSeconds,
	}
	metrics.WarningsClosed.WithLabelValues(string(e.Reason)).Inc()
	metrics.WarningDuration.Observe(rec.Duration().Seconds())
	l.journal.RecordWarning(rec)
	l.log.WithFields(logrus.Fields{
		"warning": e.Warning.ID,
		"reason":  e.Reason,
	}).Info("warning closed")
}

func (l *Loop) debugActivity(kind domain.EventKind, now Instant) {
	if now.Wall.Sub(l.lastDebug) < debugEvery {
		return
	}
	l.lastDebug = now.Wall
	l.log.WithFields(logrus.Fields{
		"source":     kind.String(),
		"tick":       now.Tick,
		"hook_calls": l.sampler.Calls(),
	}).Debug("activity")
}

func (l *Loop) now() Instant {
	return Instant{Tick: l.platform.Ticks(), Wall: l.clock.Now()}
}

// ─── Status ─────────────────────────────────────────────────────────────────

// Snapshot returns the guard status, computed on the loop goroutine.
func (l *Loop) Snapshot(ctx context.Context) (domain.Status, error) {
	reply := make(chan domain.Status, 1)
	query := func() { reply <- l.status() }

	select {
	case l.queries <- query:
	case <-l.done:
		return domain.Status{}, domain.ErrLoopStopped
	case <-ctx.Done():
		return domain.Status{}, ctx.Err()
	}

	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return domain.Status{}, ctx.Err()
	}
}

func (l *Loop) status() domain.Status {
	now := l.now()
	m := l.machine
	st := domain.Status{
		State:            m.State().String(),
		IdleThreshold:    l.cfg.IdleSeconds,
		GracePeriod:      l.cfg.GraceSeconds,
		LastInteraction:  m.LastInteraction(),
		CurrentTick:      now.Tick,
		RemainingSeconds: m.Remaining(),
		HookCalls:        l.sampler.Calls(),
		LocksTriggered:   m.Locks(),
		StartedAt:        l.startedAt,
	}
	if cal := m.Calibration(); cal != nil {
		st.Calibrated = true
		st.MillisPerTick = cal.MillisPerTick
		st.IdleTicks = cal.IdleTicks
		st.GraceTicks = cal.GraceTicks
		if now.Tick > st.LastInteraction {
			st.IdleFor = float64(now.Tick-st.LastInteraction) * cal.MillisPerTick / 1000
		}
	}
	if w, ok := m.Warning(); ok {
		st.WarningID = w.ID
	}
	return st
}

type nopJournal struct{}

func (nopJournal) RecordWarning(domain.WarningRecord)       {}
func (nopJournal) RecordTransition(domain.TransitionRecord) {}
