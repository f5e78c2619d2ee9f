package tool

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fistoar/crm-realtime/types"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.Port != 53318 || cfg.Notify.Volume != 0.5 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Reconnect.PingInterval != 25*time.Second {
		t.Errorf("unexpected ping interval %v", cfg.Reconnect.PingInterval)
	}
}

func TestLoadConfigFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("serverUrl: wss://crm.example.com/socket\nreconnect:\n  pingInterval: 5s\nnotify:\n  enabled: true\n  volume: 3\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServerURL != "wss://crm.example.com/socket" {
		t.Errorf("server URL not read: %q", cfg.ServerURL)
	}
	if cfg.Reconnect.PingInterval != 5*time.Second {
		t.Errorf("ping interval = %v, want 5s", cfg.Reconnect.PingInterval)
	}
	if cfg.Notify.Volume != 0.5 {
		t.Errorf("out of range volume should reset to default, got %v", cfg.Notify.Volume)
	}
	if cfg.Notify.SocketPath == "" || cfg.SessionPath == "" {
		t.Errorf("missing fields not defaulted: %+v", cfg)
	}
}

func TestLoadConfigRejectsDirectory(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatal("expected error for directory path")
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := DefaultConfig()
	ApplyFlags(&cfg, types.Config{UseServerURL: "ws://other/socket", UsePort: 9000, SkipNotify: true})
	if cfg.ServerURL != "ws://other/socket" || cfg.Port != 9000 || cfg.Notify.Enabled {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}

func TestPersistPermission(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := LoadConfig(path); err != nil {
		t.Fatal(err)
	}
	PersistPermission(types.PermissionGranted)
	if got := GetCurrentConfig().Notify.Permission; got != string(types.PermissionGranted) {
		t.Errorf("current permission = %q", got)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Notify.Permission != string(types.PermissionGranted) {
		t.Errorf("persisted permission = %q", cfg.Notify.Permission)
	}
}
