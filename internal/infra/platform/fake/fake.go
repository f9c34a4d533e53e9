// Package fake provides an in-memory Platform for exercising the idle
// guard without a desktop session.
package fake

import (
	"sync"

	"github.com/idlelock/idlelock/internal/domain"
)

// Platform is a scriptable domain.Platform. The zero value is usable.
type Platform struct {
	mu sync.Mutex

	tick     uint64
	TickFunc func() uint64 // overrides the manual tick counter when set

	Engaged   bool
	StartErr  error
	PromptErr error
	LockErr   error

	// LoopBackLock makes LockSession post a SessionLock notification, as
	// the real OS does.
	LoopBackLock bool

	sink          domain.ActivitySink
	started       bool
	closed        int
	promptOpen    bool
	promptRange   int
	opens         int
	closes        int
	steps         []int
	locks         int
	alerts        []string
	engagedChecks int
}

var _ domain.Platform = (*Platform)(nil)

// Advance moves the manual tick counter forward.
func (p *Platform) Advance(ticks uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tick += ticks
}

// SetTick sets the manual tick counter.
func (p *Platform) SetTick(tick uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tick = tick
}

// SetEngaged toggles the engagement indicator.
func (p *Platform) SetEngaged(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Engaged = v
}

func (p *Platform) Ticks() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TickFunc != nil {
		return p.TickFunc()
	}
	return p.tick
}

func (p *Platform) Start(sink domain.ActivitySink) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StartErr != nil {
		return p.StartErr
	}
	p.sink = sink
	p.started = true
	return nil
}

func (p *Platform) OpenPrompt(graceSeconds int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PromptErr != nil {
		return p.PromptErr
	}
	p.promptOpen = true
	p.promptRange = graceSeconds
	p.opens++
	return nil
}

func (p *Platform) StepPrompt(remaining int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, remaining)
}

func (p *Platform) ClosePrompt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.promptOpen {
		return
	}
	p.promptOpen = false
	p.closes++
}

func (p *Platform) UserEngaged() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.engagedChecks++
	return p.Engaged
}

func (p *Platform) LockSession() error {
	p.mu.Lock()
	if p.LockErr != nil {
		p.mu.Unlock()
		return p.LockErr
	}
	p.locks++
	sink, loop := p.sink, p.LoopBackLock
	p.mu.Unlock()

	if loop && sink != nil {
		sink.Post(domain.SessionLock)
	}
	return nil
}

func (p *Platform) Alert(title, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, title+": "+message)
}

func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	p.promptOpen = false
	p.sink = nil
	p.started = false
	return nil
}

// ─── Simulated OS input ─────────────────────────────────────────────────────

// Key simulates one raw keyboard event through the registered sink.
func (p *Platform) Key() { p.emit(domain.KeyboardActivity) }

// Move simulates one raw pointer event through the registered sink.
func (p *Platform) Move() { p.emit(domain.PointerActivity) }

// Notify simulates a session or prompt notification.
func (p *Platform) Notify(kind domain.EventKind) {
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()
	if sink != nil {
		sink.Post(kind)
	}
}

func (p *Platform) emit(kind domain.EventKind) {
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()
	if sink != nil {
		sink.Observe(kind)
	}
}

// ─── Inspection ─────────────────────────────────────────────────────────────

func (p *Platform) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *Platform) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Platform) PromptOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.promptOpen
}

func (p *Platform) PromptRange() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.promptRange
}

func (p *Platform) Opens() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

func (p *Platform) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

func (p *Platform) Steps() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.steps...)
}

func (p *Platform) Locks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locks
}

func (p *Platform) Alerts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.alerts...)
}

func (p *Platform) EngagedChecks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engagedChecks
}
