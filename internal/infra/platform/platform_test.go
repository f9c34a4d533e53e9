package platform

import (
	"strings"
	"testing"
	"time"
)

func TestInputTracker(t *testing.T) {
	tr := newInputTracker(200 * time.Millisecond)

	if tr.seen(10 * time.Millisecond) {
		t.Error("first sample reported activity")
	}

	tests := []struct {
		name  string
		since time.Duration
		want  bool
	}{
		{"idle grows", 400 * time.Millisecond, false},
		{"still idle", 600 * time.Millisecond, false},
		{"reset by input", 350 * time.Millisecond, true},
		{"aging again", 550 * time.Millisecond, false},
		{"recent input", 50 * time.Millisecond, true},
		{"continuous input", 80 * time.Millisecond, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.seen(tt.since); got != tt.want {
				t.Errorf("seen(%v) = %v, want %v", tt.since, got, tt.want)
			}
		})
	}
}

func TestInputTracker_SecondResolution(t *testing.T) {
	tr := newInputTracker(time.Second)
	tr.seen(5 * time.Second)

	if tr.seen(6 * time.Second) {
		t.Error("growing idle time reported activity")
	}
	if !tr.seen(0) {
		t.Error("zero idle time not reported")
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		grace, remaining, want int
	}{
		{10, 10, 0},
		{10, 5, 50},
		{10, 0, 100},
		{10, -1, 100},
		{3, 2, 33},
		{0, 0, 100},
		{5, 9, 0},
	}
	for _, tt := range tests {
		if got := progressPercent(tt.grace, tt.remaining); got != tt.want {
			t.Errorf("progressPercent(%d, %d) = %d, want %d", tt.grace, tt.remaining, got, tt.want)
		}
	}
}

func TestCountdownText(t *testing.T) {
	if got := countdownText(1); !strings.Contains(got, "1 second.") {
		t.Errorf("countdownText(1) = %q", got)
	}
	if got := countdownText(30); !strings.Contains(got, "30 seconds.") {
		t.Errorf("countdownText(30) = %q", got)
	}
}

func TestLockState(t *testing.T) {
	var s lockState
	steps := []struct {
		locked bool
		want   bool
	}{
		{true, true},
		{true, false}, // same change from the second interface
		{false, true},
		{false, false},
		{true, true},
	}
	for i, st := range steps {
		if got := s.changed(st.locked); got != st.want {
			t.Errorf("step %d: changed(%v) = %v, want %v", i, st.locked, got, st.want)
		}
	}
}

func TestLockState_FirstUnlockPasses(t *testing.T) {
	var s lockState
	if !s.changed(false) {
		t.Error("first unlock notification filtered")
	}
}
