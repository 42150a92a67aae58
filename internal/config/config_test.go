package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fip.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
	if cfg.IOTimeout() != 5*time.Second {
		t.Errorf("io timeout = %v, want 5s", cfg.IOTimeout())
	}
	if cfg.RescanInterval() != 2*time.Second {
		t.Errorf("rescan interval = %v, want 2s", cfg.RescanInterval())
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
log_level: debug
usb:
  vendor_id: 0x06A3
  product_ids: [0xA2AE, 0xA2AF]
  io_timeout_ms: 2500
  rescan_interval_ms: 0
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.USB.VendorID != 0x06A3 {
		t.Errorf("vendor id = %04x", cfg.USB.VendorID)
	}
	if len(cfg.USB.ProductIDs) != 2 || cfg.USB.ProductIDs[1] != 0xA2AF {
		t.Errorf("product ids = %v", cfg.USB.ProductIDs)
	}
	if cfg.IOTimeout() != 2500*time.Millisecond {
		t.Errorf("io timeout = %v", cfg.IOTimeout())
	}
	if cfg.RescanInterval() != 0 {
		t.Errorf("rescan interval should be disabled")
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("slog level = %v", cfg.SlogLevel())
	}
}

func TestValidateRejectsBadLevel(t *testing.T) {
	if _, err := Load(writeConfig(t, "log_level: loud\n")); err == nil {
		t.Fatalf("expected error for unknown log level")
	}
}

func TestValidateRejectsNegativeTimeout(t *testing.T) {
	if _, err := Load(writeConfig(t, "usb:\n  io_timeout_ms: -1\n")); err == nil {
		t.Fatalf("expected error for negative timeout")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
