package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Agent.DryRun {
		t.Fatal("expected dry_run to default to true")
	}
	if cfg.Agent.ApprovalsEnabled {
		t.Fatal("expected approvals to default to disabled")
	}
	if cfg.Local.ActionsEnabled {
		t.Fatal("expected local actions to default to disabled")
	}
	if cfg.Gateway.Port != 18890 {
		t.Fatalf("expected port 18890, got %d", cfg.Gateway.Port)
	}
	if len(cfg.Schedules) != 4 {
		t.Fatalf("expected 4 default schedules, got %d", len(cfg.Schedules))
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadFrom_CreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.BrandName != "Acme" {
		t.Fatalf("expected default brand, got %q", cfg.Agent.BrandName)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}
}

func TestLoadFrom_ReadsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"store": {"path": "/tmp/merx-test.db"},
		"agent": {"brand_name": "Glow", "dry_run": false, "approvals_enabled": true},
		"gateway": {"host": "127.0.0.1", "port": 9001, "token": "tok"},
		"local": {"workspace": "/tmp/ws"}
	}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.BrandName != "Glow" {
		t.Fatalf("expected brand Glow, got %q", cfg.Agent.BrandName)
	}
	if cfg.Agent.DryRun {
		t.Fatal("expected dry_run false")
	}
	if !cfg.Agent.ApprovalsEnabled {
		t.Fatal("expected approvals enabled")
	}
	if cfg.Gateway.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", cfg.Gateway.Port)
	}
	if cfg.Store.Path != "/tmp/merx-test.db" {
		t.Fatalf("unexpected store path: %q", cfg.Store.Path)
	}
}

func TestValidate_PortRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateway.Port = 70000

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected port validation error")
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "verbose"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected log level validation error")
	}

	cfg.Log.Level = "DEBUG"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected case-insensitive level: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected normalized level, got %q", cfg.Log.Level)
	}
}

func TestValidate_FillsAgentDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agent.BrandName = "  "
	cfg.Agent.DefaultInventory = 0
	cfg.Agent.StoreNiche = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Agent.BrandName != "Acme" {
		t.Fatalf("expected brand fallback, got %q", cfg.Agent.BrandName)
	}
	if cfg.Agent.DefaultInventory != 100 {
		t.Fatalf("expected inventory fallback, got %d", cfg.Agent.DefaultInventory)
	}
	if cfg.Agent.StoreNiche != "general" {
		t.Fatalf("expected niche fallback, got %q", cfg.Agent.StoreNiche)
	}
}

func TestValidate_SchedulesRequireFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Schedules = append(cfg.Schedules, ScheduleJob{Name: "broken", Expr: "", Command: "x", Enabled: true})

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected schedule validation error")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Agent.BrandName = "Roundtrip"

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Agent.BrandName != "Roundtrip" {
		t.Fatalf("expected Roundtrip, got %q", loaded.Agent.BrandName)
	}
}

func TestSaveAndReload_KeepsInventoryQty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.Agent.DefaultInventory = 250

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	// The saved file must carry the snake_case key, not the Go field
	// name, or the reload silently falls back to the default.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config file: %v", err)
	}
	if !strings.Contains(string(raw), `"default_inventory_qty": 250`) {
		t.Fatalf("expected default_inventory_qty in saved file, got:\n%s", raw)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Agent.DefaultInventory != 250 {
		t.Fatalf("expected inventory 250, got %d", loaded.Agent.DefaultInventory)
	}
}
