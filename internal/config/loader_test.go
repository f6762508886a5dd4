package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"clickweaver.com/clickweaver-go/internal/capture"
	"clickweaver.com/clickweaver-go/internal/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Engine.ini")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadFromINI(t *testing.T) {
	path := writeConfig(t, `
[Engine]
databasePath = /var/lib/engine/scenarios.db
scenarioDir = /etc/engine/scenarios
imageDir = /etc/engine/images
adbPath = /usr/bin/adb
adbPort = 16384
displayWidth = 720
displayHeight = 1280
quality = 2
displayPollIntervalMs = 250
logLevel = DEBUG
`)

	cfg, err := LoadFromINI(path)
	if err != nil {
		t.Fatalf("LoadFromINI failed: %v", err)
	}

	if cfg.DatabasePath != "/var/lib/engine/scenarios.db" {
		t.Errorf("databasePath mismatch: %s", cfg.DatabasePath)
	}
	if cfg.ADBPort != 16384 {
		t.Errorf("adbPort mismatch: %d", cfg.ADBPort)
	}
	if cfg.DisplaySize != (capture.Size{Width: 720, Height: 1280}) {
		t.Errorf("display size mismatch: %v", cfg.DisplaySize)
	}
	if cfg.Quality != 2 {
		t.Errorf("quality mismatch: %d", cfg.Quality)
	}
	if cfg.DisplayPollInterval != 250*time.Millisecond {
		t.Errorf("poll interval mismatch: %v", cfg.DisplayPollInterval)
	}
	if cfg.LogLevel != logging.LogLevelDebug {
		t.Errorf("log level mismatch: %v", cfg.LogLevel)
	}
}

func TestLoadFromINIDefaults(t *testing.T) {
	path := writeConfig(t, "[Engine]\n")

	cfg, err := LoadFromINI(path)
	if err != nil {
		t.Fatalf("LoadFromINI failed: %v", err)
	}

	if cfg.DatabasePath != "data/scenarios.db" {
		t.Errorf("wrong default database path: %s", cfg.DatabasePath)
	}
	if cfg.ADBPort != 5555 {
		t.Errorf("wrong default adb port: %d", cfg.ADBPort)
	}
	if cfg.DisplaySize != (capture.Size{Width: 1080, Height: 1920}) {
		t.Errorf("wrong default display size: %v", cfg.DisplaySize)
	}
	if cfg.LogLevel != logging.LogLevelInfo {
		t.Errorf("wrong default log level: %v", cfg.LogLevel)
	}
}

func TestLoadFromINIMissingFile(t *testing.T) {
	if _, err := LoadFromINI(filepath.Join(t.TempDir(), "nope.ini")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad port":         "[Engine]\nadbPort = 99999\n",
		"zero width":       "[Engine]\ndisplayWidth = 0\n",
		"negative quality": "[Engine]\nquality = -1\n",
	}

	for label, content := range cases {
		path := writeConfig(t, content)
		if _, err := LoadFromINI(path); err == nil {
			t.Errorf("%s: expected validation failure", label)
		}
	}
}

func TestParseLogLevelAliases(t *testing.T) {
	cases := map[string]logging.LogLevel{
		"debug":   logging.LogLevelDebug,
		"WARNING": logging.LogLevelWarn,
		"Error":   logging.LogLevelError,
		"bogus":   logging.LogLevelInfo,
	}

	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
