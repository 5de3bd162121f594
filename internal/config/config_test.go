package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Version != Version {
		t.Errorf("expected version %d, got %d", Version, cfg.Version)
	}
	if cfg.IME.Package != "keyspeakd" {
		t.Errorf("expected ime package keyspeakd, got %s", cfg.IME.Package)
	}
	if cfg.IME.Class != "KeyspeakEngine" {
		t.Errorf("expected ime class KeyspeakEngine, got %s", cfg.IME.Class)
	}
	if cfg.Monitor.SuppressionWindowMs != 1000 {
		t.Errorf("expected suppression window 1000, got %d", cfg.Monitor.SuppressionWindowMs)
	}
	if cfg.IPC.MaxConnections != 16 {
		t.Errorf("expected 16 max connections, got %d", cfg.IPC.MaxConnections)
	}

	// Check paths land under the keyspeakd directories
	if !strings.Contains(cfg.History.Path, "keyspeakd") {
		t.Errorf("history path should contain keyspeakd: %s", cfg.History.Path)
	}
	if !strings.Contains(cfg.Settings.Path, "keyspeakd") {
		t.Errorf("settings path should contain keyspeakd: %s", cfg.Settings.Path)
	}
	if !strings.Contains(cfg.IPC.SocketPath, "keyspeakd") {
		t.Errorf("socket path should contain keyspeakd: %s", cfg.IPC.SocketPath)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Error("ConfigPath returned empty string")
	}
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, "keyspeakd") {
		t.Errorf("config path should contain keyspeakd: %s", path)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}

	// Should have defaults
	if cfg.Monitor.SuppressionWindowMs != 1000 {
		t.Errorf("expected suppression window 1000, got %d", cfg.Monitor.SuppressionWindowMs)
	}
}

func TestLoadValidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
version = 1

[ime]
package = "com.example.ime"
class = "ExampleEngine"

[keymap]
path = "/custom/keymap.toml"
forced = [-5, -6]

[monitor]
enabled = true
suppression_window_ms = 2500

[history]
enabled = false

[logging]
level = "debug"
format = "json"

[phrases]
shift_on = "Shift engaged"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.IME.Package != "com.example.ime" {
		t.Errorf("expected package com.example.ime, got %s", cfg.IME.Package)
	}
	if cfg.IME.Class != "ExampleEngine" {
		t.Errorf("expected class ExampleEngine, got %s", cfg.IME.Class)
	}
	if cfg.Keymap.Path != "/custom/keymap.toml" {
		t.Errorf("expected keymap path /custom/keymap.toml, got %s", cfg.Keymap.Path)
	}
	if len(cfg.Keymap.Forced) != 2 || cfg.Keymap.Forced[0] != -5 {
		t.Errorf("unexpected forced codes: %v", cfg.Keymap.Forced)
	}
	if cfg.Monitor.SuppressionWindowMs != 2500 {
		t.Errorf("expected suppression window 2500, got %d", cfg.Monitor.SuppressionWindowMs)
	}
	if cfg.History.Enabled {
		t.Error("expected history disabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected format json, got %s", cfg.Logging.Format)
	}
	if cfg.Phrases.ShiftOn != "Shift engaged" {
		t.Errorf("expected phrase override, got %s", cfg.Phrases.ShiftOn)
	}
}

func TestLoadPartialTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	// Only set some values, rest should come from defaults
	content := `
[monitor]
suppression_window_ms = 750
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Monitor.SuppressionWindowMs != 750 {
		t.Errorf("expected suppression window 750, got %d", cfg.Monitor.SuppressionWindowMs)
	}
	if cfg.IME.Package != "keyspeakd" {
		t.Errorf("expected default ime package, got %s", cfg.IME.Package)
	}
	if cfg.IPC.MaxConnections != 16 {
		t.Errorf("expected default max connections, got %d", cfg.IPC.MaxConnections)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	content := `{
  "ime": {"package": "com.example.ime", "class": "JSONEngine"},
  "monitor": {"enabled": true, "suppression_window_ms": 300}
}`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.IME.Class != "JSONEngine" {
		t.Errorf("expected class JSONEngine, got %s", cfg.IME.Class)
	}
	if cfg.Monitor.SuppressionWindowMs != 300 {
		t.Errorf("expected suppression window 300, got %d", cfg.Monitor.SuppressionWindowMs)
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
ime:
  package: com.example.ime
  class: YAMLEngine
logging:
  level: warn
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.IME.Class != "YAMLEngine" {
		t.Errorf("expected class YAMLEngine, got %s", cfg.IME.Class)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected level warn, got %s", cfg.Logging.Level)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
this is not valid toml {{{
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("KEYSPEAKD_SOCKET_PATH", "/env/override.sock")
	t.Setenv("KEYSPEAKD_LOG_LEVEL", "debug")
	t.Setenv("KEYSPEAKD_KEYMAP_PATH", "/env/keymap.toml")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if cfg.IPC.SocketPath != "/env/override.sock" {
		t.Errorf("expected env socket path, got %s", cfg.IPC.SocketPath)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env log level, got %s", cfg.Logging.Level)
	}
	if cfg.Keymap.Path != "/env/keymap.toml" {
		t.Errorf("expected env keymap path, got %s", cfg.Keymap.Path)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
[logging]
level = "error"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("KEYSPEAKD_LOG_LEVEL", "debug")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("env override should beat the file, got %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidateEmptyIdentity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IME.Package = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty ime package")
	}

	cfg = DefaultConfig()
	cfg.IME.Class = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty ime class")
	}
}

func TestValidateBadOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bus.Override = "maybe"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for bad bus override")
	}

	cfg.Bus.Override = OverrideEnabled
	if err := cfg.Validate(); err != nil {
		t.Errorf("enabled override should be valid: %v", err)
	}
}

func TestValidateNegativeWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Monitor.SuppressionWindowMs = -5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative suppression window")
	}
}

func TestValidateBadLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestValidateBadKeymapExtension(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Keymap.Path = "/some/keymap.ini"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported keymap extension")
	}
}

func TestValidateSocketRequiredWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IPC.Enabled = true
	cfg.IPC.SocketPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty socket path with ipc enabled")
	}

	cfg.IPC.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled ipc should not require a socket path: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	cfg := DefaultConfig()
	cfg.IME.Package = "round.trip"
	cfg.Monitor.SuppressionWindowMs = 1234
	cfg.Keymap.Forced = []int{-1, -5}

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.IME.Package != "round.trip" {
		t.Errorf("expected package round.trip, got %s", loaded.IME.Package)
	}
	if loaded.Monitor.SuppressionWindowMs != 1234 {
		t.Errorf("expected suppression window 1234, got %d", loaded.Monitor.SuppressionWindowMs)
	}
	if len(loaded.Keymap.Forced) != 2 {
		t.Errorf("expected 2 forced codes, got %d", len(loaded.Keymap.Forced))
	}
}

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	cfg, err := LoadOrCreate(configPath)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadOrCreate returned nil config")
	}

	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("config file was not created: %v", err)
	}

	// Second call loads the written file
	again, err := LoadOrCreate(configPath)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if again.IME.Package != cfg.IME.Package {
		t.Errorf("reloaded config differs: %s vs %s", again.IME.Package, cfg.IME.Package)
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Keymap.Forced = []int{-1, -2}

	clone := cfg.Clone()
	clone.IME.Package = "changed"
	clone.Keymap.Forced[0] = -99

	if cfg.IME.Package == "changed" {
		t.Error("clone should not share scalar fields")
	}
	if cfg.Keymap.Forced[0] == -99 {
		t.Error("clone should not share the forced slice")
	}
}

func TestEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.History.Path = filepath.Join(tmpDir, "subdir1", "history.db")
	cfg.IPC.SocketPath = filepath.Join(tmpDir, "subdir2", "keyspeakd.sock")
	cfg.Logging.FilePath = filepath.Join(tmpDir, "subdir3", "keyspeakd.log")
	cfg.Settings.Path = filepath.Join(tmpDir, "subdir4", "settings.toml")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, sub := range []string{"subdir1", "subdir2", "subdir3", "subdir4"} {
		if _, err := os.Stat(filepath.Join(tmpDir, sub)); os.IsNotExist(err) {
			t.Errorf("%s was not created", sub)
		}
	}
}

func TestEnsureDirectoriesEmptyPaths(t *testing.T) {
	cfg := &Config{}

	// Should not error with empty paths
	if err := cfg.EnsureDirectories(); err != nil {
		t.Errorf("EnsureDirectories failed with empty paths: %v", err)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Monitor.SuppressionWindowMs = 1500
	cfg.IPC.TimeoutSec = 30

	if cfg.SuppressionWindow() != 1500*time.Millisecond {
		t.Errorf("expected 1.5s window, got %v", cfg.SuppressionWindow())
	}
	if cfg.IdleTimeout() != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.IdleTimeout())
	}
}
