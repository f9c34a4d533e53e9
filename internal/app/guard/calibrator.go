// Package guard implements the idle-detection and lock-triggering core:
// tick calibration, input sampling, the warning state machine and the
// single-goroutine loop that drives them against a platform.
package guard

import (
	"math"
	"time"
)

// DefaultMillisPerTick is the conservative tick estimate used until the
// calibrator has measured the real rate.
const DefaultMillisPerTick = 16.0

// minMillisPerTick bounds the measured ratio so derived thresholds stay finite.
const minMillisPerTick = 1e-6

const maxThresholdTicks = 1 << 62

// Instant pairs the platform tick counter with wall time at one moment.
type Instant struct {
	Tick uint64
	Wall time.Time
}

// Calibration converts second-based thresholds into platform ticks.
// A nil *Calibration means the guard has not been calibrated yet.
type Calibration struct {
	MillisPerTick float64
	IdleTicks     uint64
	GraceTicks    uint64
	FellBack      bool // measurement was unusable; MillisPerTick is the default
}

// NewCalibration derives tick thresholds from a ms-per-tick ratio.
// Thresholds are clamped to at least one tick.
func NewCalibration(msPerTick float64, idleSeconds, graceSeconds int) Calibration {
	if msPerTick < minMillisPerTick || math.IsNaN(msPerTick) || math.IsInf(msPerTick, 0) {
		msPerTick = DefaultMillisPerTick
	}
	return Calibration{
		MillisPerTick: msPerTick,
		IdleTicks:     secondsToTicks(idleSeconds, msPerTick),
		GraceTicks:    secondsToTicks(graceSeconds, msPerTick),
	}
}

func secondsToTicks(seconds int, msPerTick float64) uint64 {
	ticks := math.Floor(float64(seconds) * 1000 / msPerTick)
	if ticks < 1 {
		return 1
	}
	if ticks >= maxThresholdTicks {
		return maxThresholdTicks
	}
	return uint64(ticks)
}

// Calibrator measures wall time elapsed per platform tick over a fixed window.
type Calibrator struct {
	window   time.Duration
	fallback float64
	start    Instant
	begun    bool
	done     bool
}

// NewCalibrator creates a calibrator. fallback is used when the measured
// window is unusable (no ticks elapsed, or wall time went backwards).
func NewCalibrator(window time.Duration, fallback float64) *Calibrator {
	if fallback < minMillisPerTick {
		fallback = DefaultMillisPerTick
	}
	return &Calibrator{window: window, fallback: fallback}
}

// Window returns the measurement window.
func (c *Calibrator) Window() time.Duration { return c.window }

// Begin records the start of the measurement window.
func (c *Calibrator) Begin(at Instant) {
	c.start = at
	c.begun = true
	c.done = false
}

// Done reports whether Complete has already produced a calibration.
func (c *Calibrator) Done() bool { return c.done }

// Complete ends the measurement and derives thresholds. It runs once;
// later calls return ok == false.
func (c *Calibrator) Complete(at Instant, idleSeconds, graceSeconds int) (cal Calibration, ok bool) {
	if !c.begun || c.done {
		return Calibration{}, false
	}
	c.done = true

	msPerTick, measured := c.measure(at)
	cal = NewCalibration(msPerTick, idleSeconds, graceSeconds)
	cal.FellBack = !measured
	return cal, true
}

func (c *Calibrator) measure(at Instant) (float64, bool) {
	if at.Tick <= c.start.Tick {
		return c.fallback, false
	}
	wall := at.Wall.Sub(c.start.Wall)
	if wall <= 0 {
		return c.fallback, false
	}
	ratio := float64(wall) / float64(time.Millisecond) / float64(at.Tick-c.start.Tick)
	if ratio < minMillisPerTick {
		return c.fallback, false
	}
	return ratio, true
}
