package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.

var (
	// Configuration errors
	ErrInvalidArgCount = errors.New("expected two arguments: idle seconds and grace seconds")
	ErrArgNotNumber    = errors.New("argument could not be understood as a positive number")

	// Singleton errors
	ErrAlreadyRunning = errors.New("another instance is already running")

	// Platform errors
	ErrUnsupportedPlatform = errors.New("idle locking is not supported on this platform")
	ErrHookFailed          = errors.New("failed to register global input observer")
	ErrSessionNotify       = errors.New("failed to subscribe to session notifications")
	ErrPromptFailed        = errors.New("failed to create warning prompt")
	ErrLockFailed          = errors.New("failed to lock the session")

	// Guard errors
	ErrLoopStopped = errors.New("guard loop is not running")
)
