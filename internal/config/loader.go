// Package config loads engine settings from an INI file.
package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"clickweaver.com/clickweaver-go/internal/capture"
	"clickweaver.com/clickweaver-go/internal/logging"
)

// Config holds everything the engine process needs at startup
type Config struct {
	// Storage
	DatabasePath string
	ScenarioDir  string
	ImageDir     string

	// Gesture dispatch
	ADBPath string
	ADBPort int

	// Capture
	DisplaySize         capture.Size
	Quality             int
	DisplayPollInterval time.Duration

	// Logging
	LogLevel logging.LogLevel
	LogFile  string
}

// LoadFromINI loads configuration from an Engine.ini style settings file
func LoadFromINI(path string) (*Config, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	section := cfg.Section("Engine")

	config := &Config{}

	// Storage
	config.DatabasePath = section.Key("databasePath").MustString("data/scenarios.db")
	config.ScenarioDir = section.Key("scenarioDir").MustString("scenarios")
	config.ImageDir = section.Key("imageDir").MustString("images")

	// Gesture dispatch
	config.ADBPath = section.Key("adbPath").MustString("adb")
	config.ADBPort = section.Key("adbPort").MustInt(5555)

	// Capture
	config.DisplaySize = capture.Size{
		Width:  section.Key("displayWidth").MustInt(1080),
		Height: section.Key("displayHeight").MustInt(1920),
	}
	config.Quality = section.Key("quality").MustInt(0)
	pollMs := section.Key("displayPollIntervalMs").MustInt(1000)
	config.DisplayPollInterval = time.Duration(pollMs) * time.Millisecond

	// Logging
	config.LogLevel = parseLogLevel(section.Key("logLevel").MustString("INFO"))
	config.LogFile = section.Key("logFile").MustString("")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the loaded settings for obvious mistakes
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("databasePath cannot be empty")
	}
	if c.ADBPort <= 0 || c.ADBPort > 65535 {
		return fmt.Errorf("adbPort %d out of range", c.ADBPort)
	}
	if c.DisplaySize.Width <= 0 || c.DisplaySize.Height <= 0 {
		return fmt.Errorf("display size %dx%d is invalid", c.DisplaySize.Width, c.DisplaySize.Height)
	}
	if c.Quality < 0 {
		return fmt.Errorf("quality cannot be negative")
	}
	return nil
}

func parseLogLevel(s string) logging.LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return logging.LogLevelDebug
	case "WARN", "WARNING":
		return logging.LogLevelWarn
	case "ERROR":
		return logging.LogLevelError
	case "FATAL":
		return logging.LogLevelFatal
	default:
		return logging.LogLevelInfo
	}
}
