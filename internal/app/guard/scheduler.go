package guard

import (
	"sync"
	"time"

	"github.com/idlelock/idlelock/internal/domain"
)

// Clock supplies wall time for calibration and journaling.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Scheduler delivers timer events to the guard loop. The returned stop
// function is idempotent. An event already handed to the queue may still
// arrive after stop; countdown events carry a Seq so stale ones are ignored.
type Scheduler interface {
	Every(d time.Duration, ev domain.Event) (stop func())
	After(d time.Duration, ev domain.Event) (stop func())
}

// timerScheduler backs Scheduler with time.Ticker/time.Timer goroutines
// that feed the loop's timer queue.
type timerScheduler struct {
	out  chan<- domain.Event
	done <-chan struct{}
}

func newTimerScheduler(out chan<- domain.Event, done <-chan struct{}) *timerScheduler {
	return &timerScheduler{out: out, done: done}
}

func (s *timerScheduler) Every(d time.Duration, ev domain.Event) func() {
	quit := make(chan struct{})
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-s.done:
				return
			case <-ticker.C:
				if !s.send(ev, quit) {
					return
				}
			}
		}
	}()
	return stopOnce(quit)
}

func (s *timerScheduler) After(d time.Duration, ev domain.Event) func() {
	quit := make(chan struct{})
	timer := time.NewTimer(d)
	go func() {
		defer timer.Stop()
		select {
		case <-quit:
		case <-s.done:
		case <-timer.C:
			s.send(ev, quit)
		}
	}()
	return stopOnce(quit)
}

func (s *timerScheduler) send(ev domain.Event, quit <-chan struct{}) bool {
	select {
	case s.out <- ev:
		return true
	case <-quit:
		return false
	case <-s.done:
		return false
	}
}

func stopOnce(quit chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() { close(quit) })
	}
}
