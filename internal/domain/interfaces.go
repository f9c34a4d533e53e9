package domain

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// ActivitySink receives events from platform callbacks. Every method is
// non-blocking and safe to call from any goroutine or OS thread.
type ActivitySink interface {
	// Observe is called for every raw input event. Only a sampled subset
	// reaches the guard loop.
	Observe(kind EventKind)

	// Report delivers an input event from a source that is already rate
	// limited (for example a poller), bypassing sampling.
	Report(kind EventKind)

	// Post delivers a control event: session lock/unlock or prompt dismissal.
	Post(kind EventKind)
}

// Platform abstracts the desktop primitives the idle guard consumes.
// Implemented by infra/platform for each supported OS.
type Platform interface {
	// Ticks returns the platform's monotonic tick counter.
	Ticks() uint64

	// Start registers the global input observers and session lock/unlock
	// notifications. Failure is fatal: there is no idle detection without them.
	Start(sink ActivitySink) error

	// OpenPrompt shows the modal countdown prompt ranged over graceSeconds.
	OpenPrompt(graceSeconds int) error

	// StepPrompt advances the progress indicator one step.
	StepPrompt(remaining int)

	// ClosePrompt releases the prompt. A no-op when none is open.
	ClosePrompt()

	// UserEngaged reports whether the user is present but intentionally not
	// interacting (full-screen app, presentation mode, quiet hours).
	UserEngaged() bool

	// LockSession invokes the platform's interactive session lock.
	LockSession() error

	// Alert shows a blocking, user-facing message.
	Alert(title, message string)

	// Close unregisters observers and notifications. Idempotent.
	Close() error
}

// Journal records warning sessions and session transitions.
// Implementations must not block the caller.
type Journal interface {
	RecordWarning(rec WarningRecord)
	RecordTransition(rec TransitionRecord)
}
