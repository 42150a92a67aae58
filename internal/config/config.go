// Package config loads the runtime configuration for fipctl from a
// YAML file. Everything is optional; the zero config targets stock
// Saitek panels with the protocol's standard timeouts.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string    `yaml:"log_level"`
	USB      USBConfig `yaml:"usb"`
}

type USBConfig struct {
	VendorID   uint16   `yaml:"vendor_id"`
	ProductIDs []uint16 `yaml:"product_ids"`

	IOTimeoutMs      int `yaml:"io_timeout_ms"`
	RescanIntervalMs int `yaml:"rescan_interval_ms"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		USB: USBConfig{
			IOTimeoutMs:      5000,
			RescanIntervalMs: 2000,
		},
	}
}

// Load reads and validates a YAML config file, applied on top of the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration correctness. It does not mutate the
// configuration.
func Validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q: must be one of debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.USB.IOTimeoutMs < 0 {
		return fmt.Errorf("io_timeout_ms must not be negative")
	}
	if cfg.USB.RescanIntervalMs < 0 {
		return fmt.Errorf("rescan_interval_ms must not be negative")
	}
	return nil
}

// SlogLevel maps the configured level name onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IOTimeout returns the transfer timeout as a duration.
func (c Config) IOTimeout() time.Duration {
	return time.Duration(c.USB.IOTimeoutMs) * time.Millisecond
}

// RescanInterval returns the hotplug scan interval as a duration.
// Zero disables background scanning.
func (c Config) RescanInterval() time.Duration {
	return time.Duration(c.USB.RescanIntervalMs) * time.Millisecond
}
