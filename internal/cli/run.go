package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/idlelock/idlelock/internal/daemon"
	"github.com/idlelock/idlelock/internal/domain"
	"github.com/idlelock/idlelock/internal/infra/platform"
)

const argsAlertTitle = "Invalid command line arguments"

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run IDLE_SECONDS GRACE_SECONDS",
	Short: "Run the idle guard (same as the root command)",
	Args:  cobra.ArbitraryArgs,
	RunE:  runGuard,
}

func runGuard(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return &ExitError{Code: ExitStartup, Err: err}
	}

	logs, err := daemon.SetupLogging(cfg.Logging, verbose)
	if err != nil {
		return &ExitError{Code: ExitStartup, Err: err}
	}
	defer logs.Close()

	// The instance check comes before any observer is registered.
	instance, err := daemon.AcquireSingleton(daemon.Home())
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			return &ExitError{Code: ExitMultipleInstances, Err: err}
		}
		return &ExitError{Code: ExitStartup, Err: err}
	}
	defer instance.Unlock()

	p, err := platform.New(logrus.WithField("component", "platform"))
	if err != nil {
		return &ExitError{Code: ExitStartup, Err: err}
	}

	idle, grace, err := parseThresholds(args)
	if err != nil {
		p.Alert(argsAlertTitle, err.Error())
		return err
	}

	d, err := daemon.New(cfg, p, idle, grace, cmd.Root().Version)
	if err != nil {
		p.Alert("idlelock", err.Error())
		return &ExitError{Code: ExitStartup, Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"idle_seconds":  idle,
		"grace_seconds": grace,
		"home":          daemon.Home(),
	}).Info("idle guard starting")

	if err := d.Serve(cmd.Context()); err != nil {
		p.Alert("idlelock", err.Error())
		return &ExitError{Code: ExitStartup, Err: err}
	}
	logrus.Info("idle guard stopped")
	return nil
}

// parseThresholds reads IDLE_SECONDS and GRACE_SECONDS.
func parseThresholds(args []string) (idle, grace int, err error) {
	if len(args) != 2 {
		return 0, 0, &ExitError{
			Code: ExitArgCount,
			Err:  fmt.Errorf("%w, got %d", domain.ErrInvalidArgCount, len(args)),
		}
	}
	if idle, err = parsePositive(args[0]); err != nil {
		return 0, 0, err
	}
	if grace, err = parsePositive(args[1]); err != nil {
		return 0, 0, err
	}
	return idle, grace, nil
}

func parsePositive(arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n <= 0 {
		return 0, &ExitError{
			Code: ExitArgValue,
			Err:  fmt.Errorf("%w: %q", domain.ErrArgNotNumber, arg),
		}
	}
	return n, nil
}
