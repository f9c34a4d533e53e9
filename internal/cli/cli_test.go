package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/idlelock/idlelock/internal/api"
	"github.com/idlelock/idlelock/internal/domain"
)

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantIdle  int
		wantGrace int
		wantCode  int
		wantErr   error
	}{
		{"valid", []string{"300", "10"}, 300, 10, 0, nil},
		{"padded", []string{" 5", "3 "}, 5, 3, 0, nil},
		{"no args", nil, 0, 0, ExitArgCount, domain.ErrInvalidArgCount},
		{"one arg", []string{"300"}, 0, 0, ExitArgCount, domain.ErrInvalidArgCount},
		{"three args", []string{"1", "2", "3"}, 0, 0, ExitArgCount, domain.ErrInvalidArgCount},
		{"idle not a number", []string{"five", "3"}, 0, 0, ExitArgValue, domain.ErrArgNotNumber},
		{"grace not a number", []string{"5", "3s"}, 0, 0, ExitArgValue, domain.ErrArgNotNumber},
		{"zero", []string{"0", "3"}, 0, 0, ExitArgValue, domain.ErrArgNotNumber},
		{"negative grace", []string{"5", "-1"}, 0, 0, ExitArgValue, domain.ErrArgNotNumber},
		{"overflow", []string{"99999999999999999999999", "1"}, 0, 0, ExitArgValue, domain.ErrArgNotNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idle, grace, err := parseThresholds(tt.args)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("parseThresholds() error: %v", err)
				}
				if idle != tt.wantIdle || grace != tt.wantGrace {
					t.Errorf("parseThresholds() = %d, %d, want %d, %d", idle, grace, tt.wantIdle, tt.wantGrace)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got := exitCode(err); got != tt.wantCode {
				t.Errorf("exitCode() = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(errors.New("boom")); got != 6 {
		t.Errorf("plain error code = %d, want 6", got)
	}
	seen := map[int]string{}
	for name, code := range map[string]int{
		"failure":            ExitFailure,
		"multiple instances": ExitMultipleInstances,
		"usage":              ExitUsage,
		"arg count":          ExitArgCount,
		"arg value":          ExitArgValue,
		"startup":            ExitStartup,
	} {
		if other, dup := seen[code]; dup {
			t.Errorf("%s and %s share exit code %d", name, other, code)
		}
		seen[code] = name
	}
	wrapped := &ExitError{Code: ExitMultipleInstances, Err: domain.ErrAlreadyRunning}
	if got := exitCode(wrapped); got != 1 {
		t.Errorf("multiple instances code = %d, want 1", got)
	}
	if !errors.Is(wrapped, domain.ErrAlreadyRunning) {
		t.Error("ExitError does not unwrap")
	}
}

func TestRoot_UnknownFlagIsUsageError(t *testing.T) {
	rootCmd.SetArgs([]string{"--no-such-flag", "5", "3"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("Execute() succeeded with an unknown flag")
	}
	if got := exitCode(err); got != ExitUsage {
		t.Errorf("exitCode() = %d, want %d", got, ExitUsage)
	}
}

func TestConfigCommands(t *testing.T) {
	home := t.TempDir()
	t.Setenv("IDLELOCK_HOME", home)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		configForce = false
	}()

	var out bytes.Buffer
	rootCmd.SetOut(&out)

	rootCmd.SetArgs([]string{"config", "path"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config path: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != filepath.Join(home, "config.toml") {
		t.Errorf("config path = %q", got)
	}

	rootCmd.SetArgs([]string{"config", "init"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "config.toml")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	rootCmd.SetArgs([]string{"config", "init"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("second config init without --force succeeded")
	}

	rootCmd.SetArgs([]string{"config", "init", "--force"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config init --force: %v", err)
	}

	out.Reset()
	rootCmd.SetArgs([]string{"config", "show"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"[guard]", "evaluate_interval", "[api]", "7311"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("config show missing %q:\n%s", want, out.String())
		}
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, domain.Status{
		State:            "warning",
		Calibrated:       true,
		MillisPerTick:    16,
		IdleThreshold:    5,
		IdleTicks:        312,
		GracePeriod:      3,
		WarningID:        "abc",
		RemainingSeconds: 2,
		LocksTriggered:   1,
	}, "ok")

	out := buf.String()
	for _, want := range []string{"warning", "16.000 ms/tick", "312 ticks", "abc (2s left)", "ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintStatus_Calibrating(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, domain.Status{State: "disabled"}, "ok")
	if !strings.Contains(buf.String(), "calibrating") {
		t.Errorf("status output = %q, want calibrating", buf.String())
	}
	if strings.Contains(buf.String(), "Warning:") {
		t.Error("status output shows a warning that is not open")
	}
}

func TestPrintHistory(t *testing.T) {
	opened := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printHistory(&buf, api.HistoryResponse{
		Warnings: []domain.WarningRecord{{
			ID:        "0123456789abcdef",
			OpenedAt:  opened,
			ClosedAt:  opened.Add(3 * time.Second),
			Reason:    domain.CloseGraceExpired,
			GraceSecs: 3,
		}},
		Transitions: []domain.TransitionRecord{{Kind: domain.SessionLock, At: opened.Add(3 * time.Second)}},
	})

	out := buf.String()
	for _, want := range []string{"01234567", "3s", "locked", "session_lock"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "89abcdef") {
		t.Error("history output shows the full warning id")
	}
}

func TestPrintHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, api.HistoryResponse{})
	if got := strings.TrimSpace(buf.String()); got != "No warnings recorded." {
		t.Errorf("history output = %q", got)
	}
}
