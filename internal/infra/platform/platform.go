// Package platform provides the desktop backends behind domain.Platform:
// Win32 hooks and a topmost countdown window on Windows, X11 and the
// freedesktop session bus on Linux.
package platform

import (
	"fmt"
	"time"
)

// countdownText is the prompt message for the given remaining seconds.
func countdownText(remaining int) string {
	if remaining == 1 {
		return "No activity detected.\nThis session will lock in 1 second."
	}
	return fmt.Sprintf("No activity detected.\nThis session will lock in %d seconds.", remaining)
}

// progressPercent maps the remaining grace seconds onto 0..100.
func progressPercent(grace, remaining int) int {
	if grace <= 0 {
		return 100
	}
	switch {
	case remaining <= 0:
		return 100
	case remaining >= grace:
		return 0
	}
	return (grace - remaining) * 100 / grace
}

// inputTracker turns "time since last input" samples from a poller into
// activity events. An event is reported when the idle time went backwards
// or is shorter than the poll interval.
type inputTracker struct {
	interval time.Duration
	prev     time.Duration
	primed   bool
}

func newInputTracker(interval time.Duration) *inputTracker {
	return &inputTracker{interval: interval}
}

// seen records a sample and reports whether it shows fresh input. The first
// sample only establishes the baseline.
func (t *inputTracker) seen(since time.Duration) bool {
	fresh := t.primed && (since < t.prev || since < t.interval)
	t.prev = since
	t.primed = true
	return fresh
}

// lockState filters session lock notifications down to real transitions.
// Desktops that implement several screensaver interfaces announce the same
// change once per interface.
type lockState struct {
	known  bool
	locked bool
}

// changed records a notification and reports whether it differs from the
// last one seen.
func (s *lockState) changed(locked bool) bool {
	if s.known && s.locked == locked {
		return false
	}
	s.known = true
	s.locked = locked
	return true
}
