// Package config handles configuration loading, validation, and
// defaults for keyspeakd.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"keyspeakd/internal/announce"
)

// Version is the current configuration schema version.
const Version = 1

// Bus override values.
const (
	OverrideNone     = ""
	OverrideEnabled  = "enabled"
	OverrideDisabled = "disabled"
)

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// IME identifies the input method this daemon announces for.
	IME IMEConfig `toml:"ime" json:"ime" yaml:"ime"`

	// Keymap configures the key description table.
	Keymap KeymapConfig `toml:"keymap" json:"keymap" yaml:"keymap"`

	// Settings configures the platform settings store.
	Settings SettingsConfig `toml:"settings" json:"settings" yaml:"settings"`

	// Bus configures the accessibility channel.
	Bus BusConfig `toml:"bus" json:"bus" yaml:"bus"`

	// Monitor configures the announcement observer.
	Monitor MonitorConfig `toml:"monitor" json:"monitor" yaml:"monitor"`

	// History configures announcement persistence.
	History HistoryConfig `toml:"history" json:"history" yaml:"history"`

	// IPC configures the control socket.
	IPC IPCConfig `toml:"ipc" json:"ipc" yaml:"ipc"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Phrases overrides the built-in announcement phrases. Empty
	// fields keep the defaults.
	Phrases announce.Phrases `toml:"phrases" json:"phrases" yaml:"phrases"`
}

// IMEConfig names the input method identity.
type IMEConfig struct {
	// Package is the input method's package identifier.
	Package string `toml:"package" json:"package" yaml:"package"`

	// Class is the engine's simple class name.
	Class string `toml:"class" json:"class" yaml:"class"`
}

// KeymapConfig configures the key description table.
type KeymapConfig struct {
	// Path to a TOML or JSON keymap. Empty uses the bundled table.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Forced lists extra key codes whose table text overrides the key
	// label.
	Forced []int `toml:"forced" json:"forced" yaml:"forced"`
}

// SettingsConfig configures the platform settings store.
type SettingsConfig struct {
	// Path to the settings file. Empty uses <data>/settings.toml.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Watch reloads the settings file on change.
	Watch bool `toml:"watch" json:"watch" yaml:"watch"`
}

// BusConfig configures the accessibility channel.
type BusConfig struct {
	// Address of the session bus. Empty uses the standard session bus.
	Address string `toml:"address" json:"address" yaml:"address"`

	// Override forces the enablement state: "enabled", "disabled", or
	// empty to follow the platform accessibility status.
	Override string `toml:"override" json:"override" yaml:"override"`
}

// MonitorConfig configures the announcement observer.
type MonitorConfig struct {
	// Enabled runs the monitor inside the daemon.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// SuppressionWindowMs is how long an identical untokened
	// announcement counts as an echo.
	SuppressionWindowMs int `toml:"suppression_window_ms" json:"suppression_window_ms" yaml:"suppression_window_ms"`
}

// HistoryConfig configures announcement persistence.
type HistoryConfig struct {
	// Enabled persists observed announcements.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path to the history database. Empty uses <data>/history.db.
	Path string `toml:"path" json:"path" yaml:"path"`

	// RetainDays prunes older records on startup. Zero keeps
	// everything.
	RetainDays int `toml:"retain_days" json:"retain_days" yaml:"retain_days"`
}

// IPCConfig configures the control socket.
type IPCConfig struct {
	// Enabled runs the control socket server.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// SocketPath is the Unix socket path. Empty uses the runtime
	// directory.
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`

	// MaxConnections is the maximum concurrent connections.
	MaxConnections int `toml:"max_connections" json:"max_connections" yaml:"max_connections"`

	// TimeoutSec is the idle read timeout.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output includes a
	// file).
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dataDir := DataDir()

	return &Config{
		Version: Version,
		IME: IMEConfig{
			Package: "keyspeakd",
			Class:   "KeyspeakEngine",
		},
		Keymap: KeymapConfig{
			Path:   "",
			Forced: []int{},
		},
		Settings: SettingsConfig{
			Path:  filepath.Join(dataDir, "settings.toml"),
			Watch: true,
		},
		Bus: BusConfig{
			Address:  "",
			Override: OverrideNone,
		},
		Monitor: MonitorConfig{
			Enabled:             true,
			SuppressionWindowMs: 1000,
		},
		History: HistoryConfig{
			Enabled:    true,
			Path:       filepath.Join(dataDir, "history.db"),
			RetainDays: 30,
		},
		IPC: IPCConfig{
			Enabled:        true,
			SocketPath:     filepath.Join(RuntimeDir(), "keyspeakd.sock"),
			MaxConnections: 16,
			TimeoutSec:     60,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "file",
			FilePath: filepath.Join(LogDir(), "keyspeakd.log"),
		},
		Phrases: announce.Phrases{},
	}
}

// Load reads configuration from the specified path. A missing file
// returns the defaults. TOML, JSON, and YAML are chosen by extension.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode config (unknown format): %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// LoadOrCreate loads the configuration, writing the defaults first if
// no file exists yet.
func LoadOrCreate(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
	}

	return Load(path)
}

// Save writes the configuration as TOML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies KEYSPEAKD_* environment overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("KEYSPEAKD_KEYMAP_PATH"); v != "" {
		c.Keymap.Path = v
	}
	if v := os.Getenv("KEYSPEAKD_SETTINGS_PATH"); v != "" {
		c.Settings.Path = v
	}
	if v := os.Getenv("KEYSPEAKD_BUS_ADDRESS"); v != "" {
		c.Bus.Address = v
	}
	if v := os.Getenv("KEYSPEAKD_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("KEYSPEAKD_SOCKET_PATH"); v != "" {
		c.IPC.SocketPath = v
	}
	if v := os.Getenv("KEYSPEAKD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KEYSPEAKD_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.IME.Package == "" {
		return fmt.Errorf("ime.package must not be empty")
	}
	if c.IME.Class == "" {
		return fmt.Errorf("ime.class must not be empty")
	}

	if c.Keymap.Path != "" {
		switch filepath.Ext(c.Keymap.Path) {
		case ".toml", ".json":
		default:
			return fmt.Errorf("keymap.path %q: unsupported extension", c.Keymap.Path)
		}
	}

	switch c.Bus.Override {
	case OverrideNone, OverrideEnabled, OverrideDisabled:
	default:
		return fmt.Errorf("bus.override %q: must be %q, %q, or empty",
			c.Bus.Override, OverrideEnabled, OverrideDisabled)
	}

	if c.Monitor.SuppressionWindowMs < 0 {
		return fmt.Errorf("monitor.suppression_window_ms must not be negative")
	}
	if c.History.RetainDays < 0 {
		return fmt.Errorf("history.retain_days must not be negative")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path must be set when history is enabled")
	}
	if c.IPC.Enabled && c.IPC.SocketPath == "" {
		return fmt.Errorf("ipc.socket_path must be set when ipc is enabled")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: must be debug, info, warn, or error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q: must be text or json", c.Logging.Format)
	}

	return nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{}
	if c.History.Enabled && c.History.Path != "" {
		dirs = append(dirs, filepath.Dir(c.History.Path))
	}
	if c.IPC.Enabled && c.IPC.SocketPath != "" {
		dirs = append(dirs, filepath.Dir(c.IPC.SocketPath))
	}
	if c.Logging.FilePath != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	if c.Settings.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Settings.Path))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Keymap.Forced = append([]int{}, c.Keymap.Forced...)
	return &clone
}

// SuppressionWindow returns the monitor suppression window as a
// duration.
func (c *Config) SuppressionWindow() time.Duration {
	return time.Duration(c.Monitor.SuppressionWindowMs) * time.Millisecond
}

// IdleTimeout returns the control socket idle timeout as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IPC.TimeoutSec) * time.Second
}
