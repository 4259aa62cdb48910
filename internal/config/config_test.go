package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr != "127.0.0.1:8787" {
		t.Errorf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.DataFile != filepath.Join(dir, DataFile) {
		t.Errorf("expected data file in config dir, got %q", cfg.DataFile)
	}
	if cfg.Debounce != 100*time.Millisecond {
		t.Errorf("expected 100ms debounce, got %v", cfg.Debounce)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("expected 2s poll interval, got %v", cfg.PollInterval)
	}
	if cfg.MaxReconnectAttempts != 8 {
		t.Errorf("expected 8 reconnect attempts, got %d", cfg.MaxReconnectAttempts)
	}
}

func TestNewReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := "addr: 0.0.0.0:9000\ntoken: from-file\ndebounce: 250ms\nmax_reconnect_attempts: 3\n"
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "0.0.0.0:9000" {
		t.Errorf("expected addr from file, got %q", cfg.Addr)
	}
	if cfg.Token != "from-file" {
		t.Errorf("expected token from file, got %q", cfg.Token)
	}
	if cfg.Debounce != 250*time.Millisecond {
		t.Errorf("expected 250ms debounce, got %v", cfg.Debounce)
	}
	if cfg.MaxReconnectAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.MaxReconnectAttempts)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte("token: from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKSYNC_TOKEN", "from-env")
	t.Setenv("TASKSYNC_DATA_FILE", "/tmp/elsewhere.json")

	cfg, err := New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Token != "from-env" {
		t.Errorf("expected token from env, got %q", cfg.Token)
	}
	if cfg.DataFile != "/tmp/elsewhere.json" {
		t.Errorf("expected data file from env, got %q", cfg.DataFile)
	}
}

func TestNewRejectsInvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte("addr: [unclosed\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir); err == nil {
		t.Error("expected error for invalid config file")
	}
}

func TestDefaultConfigDirUsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultConfigDir(); got != filepath.Join("/xdg", AppName) {
		t.Errorf("expected %q, got %q", filepath.Join("/xdg", AppName), got)
	}
}

func TestTokenFileHelpers(t *testing.T) {
	cfg, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HasToken() {
		t.Error("expected no token")
	}
	if err := os.WriteFile(cfg.TokenPath(), []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	if !cfg.HasToken() {
		t.Error("expected token")
	}
	if err := cfg.RemoveToken(); err != nil {
		t.Fatal(err)
	}
	if cfg.HasToken() {
		t.Error("expected token removed")
	}
}
