// Package cli implements the idlelock command-line interface using Cobra.
// The root command runs the guard; subcommands talk to a running guard
// through its local status API.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "idlelock IDLE_SECONDS GRACE_SECONDS",
	Short: "Lock the session after a period of inactivity",
	Long: `idlelock watches keyboard and pointer activity and locks the desktop
session once the user has been idle for IDLE_SECONDS. Before locking it shows
a countdown prompt for GRACE_SECONDS; any input cancels it.

Example:
  idlelock 300 10`,
	Args:          cobra.ArbitraryArgs,
	RunE:          runGuard,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &ExitError{Code: ExitUsage, Err: err}
	})
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return ExitFailure
}
