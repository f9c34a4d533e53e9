package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func resetLogging() {
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.InfoLevel)
}

func TestSetupLogging_File(t *testing.T) {
	defer resetLogging()
	path := filepath.Join(t.TempDir(), "idlelock.log")

	closer, err := SetupLogging(LoggingConfig{Level: "warn", File: path, MaxSizeMB: 1, MaxFiles: 1}, false)
	if err != nil {
		t.Fatalf("SetupLogging() error: %v", err)
	}
	if logrus.GetLevel() != logrus.WarnLevel {
		t.Errorf("level = %v, want warn", logrus.GetLevel())
	}

	logrus.Info("hidden")
	logrus.Warn("visible")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "visible") || strings.Contains(string(data), "hidden") {
		t.Errorf("log file = %q", data)
	}
}

func TestSetupLogging_VerboseOverridesLevel(t *testing.T) {
	defer resetLogging()
	closer, err := SetupLogging(LoggingConfig{Level: "error"}, true)
	if err != nil {
		t.Fatalf("SetupLogging() error: %v", err)
	}
	defer closer.Close()
	if logrus.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", logrus.GetLevel())
	}
}

func TestSetupLogging_InvalidLevelFallsBack(t *testing.T) {
	defer resetLogging()
	closer, err := SetupLogging(LoggingConfig{Level: "loud"}, false)
	if err != nil {
		t.Fatalf("SetupLogging() error: %v", err)
	}
	defer closer.Close()
	if logrus.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want info", logrus.GetLevel())
	}
}
