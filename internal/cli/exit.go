package cli

// Process exit codes.
const (
	ExitMultipleInstances = 1
	ExitUsage             = 2 // command line could not be parsed
	ExitArgCount          = 3
	ExitArgValue          = 4 // argument not a positive number
	ExitStartup           = 5 // platform, journal or data directory failure
	ExitFailure           = 6 // any other command error
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }
