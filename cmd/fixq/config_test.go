package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileIsEmpty(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.RegisterBits != nil || cfg.ServerAddress != "" {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfigReadsValues(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "fixq"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	doc := "register_bits: 16\nlog_level: debug\nserver_address: 0.0.0.0:9090\n"
	if err := os.WriteFile(filepath.Join(dir, "fixq", "config.yaml"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.RegisterBits == nil || *cfg.RegisterBits != 16 {
		t.Errorf("register_bits: got %v", cfg.RegisterBits)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level: got %q", cfg.LogLevel)
	}
	if cfg.ServerAddress != "0.0.0.0:9090" {
		t.Errorf("server_address: got %q", cfg.ServerAddress)
	}
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "fixq"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "fixq", "config.yaml"), []byte("register_bits: ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(); err == nil {
		t.Fatal("malformed config accepted")
	}
}
