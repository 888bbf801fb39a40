package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults, got %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.SweepMaxAge != 24*time.Hour || cfg.SweepInterval != time.Hour {
		t.Fatalf("unexpected sweep defaults: %v / %v", cfg.SweepInterval, cfg.SweepMaxAge)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeTempConfig(t, `
port: 9000
client_url: https://poker.example.com
sweep:
  interval: 30m
  max_age: 48h
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9000 || cfg.ClientURL != "https://poker.example.com" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.SweepInterval != 30*time.Minute || cfg.SweepMaxAge != 48*time.Hour {
		t.Fatalf("unexpected sweep config: %v / %v", cfg.SweepInterval, cfg.SweepMaxAge)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("CLIENT_URL", "http://10.0.0.5:3001")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 7777 || cfg.ClientURL != "http://10.0.0.5:3001" {
		t.Fatalf("expected env overrides applied, got %+v", cfg)
	}
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := writeTempConfig(t, "sweep:\n  interval: soon\n")
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected error for unparseable sweep interval")
	}
}
