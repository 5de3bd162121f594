package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// DataDir returns the keyspeakd data directory, honoring the
// KEYSPEAKD_DATA_DIR override, then XDG_DATA_HOME, then ~/.local/share.
func DataDir() string {
	if envDir := os.Getenv("KEYSPEAKD_DATA_DIR"); envDir != "" {
		return envDir
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "keyspeakd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "keyspeakd")
}

// ConfigDir returns the keyspeakd configuration directory
// (XDG_CONFIG_HOME or ~/.config).
func ConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "keyspeakd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "keyspeakd")
}

// RuntimeDir returns the directory for the control socket
// (XDG_RUNTIME_DIR, usually /run/user/$UID, else /tmp).
func RuntimeDir() string {
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		return filepath.Join(xdgRuntime, "keyspeakd")
	}
	return filepath.Join("/tmp", "keyspeakd-"+strconv.Itoa(os.Getuid()))
}

// LogDir returns the log directory (XDG_STATE_HOME or
// ~/.local/state).
func LogDir() string {
	if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
		return filepath.Join(xdgState, "keyspeakd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "keyspeakd")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}
