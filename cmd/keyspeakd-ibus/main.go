//go:build linux

// keyspeakd-ibus is the IBus input method engine front-end. It feeds
// hardware key events through the announcer so key presses and modifier
// releases are spoken for screen reader users. Every key passes through
// unhandled; the engine only observes.
//
// Installation:
//  1. keyspeakd-ibus -install
//  2. ibus restart
//  3. Enable via ibus-setup or GNOME Settings > Keyboard > Input Sources
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"keyspeakd/internal/a11y"
	"keyspeakd/internal/announce"
	"keyspeakd/internal/config"
	"keyspeakd/internal/ime"
	"keyspeakd/internal/keydesc"
	"keyspeakd/internal/logging"
	"keyspeakd/internal/settings"
)

var (
	// Version information (set at build time)
	version = "dev"
)

var (
	configPath    = flag.String("config", "", "path to config file")
	installFlag   = flag.Bool("install", false, "install the IBus component and exit")
	uninstallFlag = flag.Bool("uninstall", false, "remove the IBus component and exit")
	showVersion   = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("keyspeakd-ibus %s\n", version)
		return
	}

	if *installFlag {
		if err := installComponent(); err != nil {
			fmt.Fprintf(os.Stderr, "Install failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Installed. Run 'ibus restart' to load the engine.")
		return
	}

	if *uninstallFlag {
		if err := uninstallComponent(); err != nil {
			fmt.Fprintf(os.Stderr, "Uninstall failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Uninstalled.")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(log)
	defer log.Close()

	announcer, bus := buildAnnouncer(cfg, log)

	engine := ime.NewEngine(announcer, log.WithComponent("engine"))
	if err := engine.Start(); err != nil {
		log.Error("engine start failed", "error", err)
		os.Exit(1)
	}

	log.Info("keyspeakd-ibus started", "version", version)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Info("shutting down")
	engine.Stop()
	if bus != nil {
		bus.Close()
	}
}

// buildAnnouncer assembles the announcer from the configuration. An
// unreachable session bus leaves the engine running silently; keys
// still pass through.
func buildAnnouncer(cfg *config.Config, log *logging.Logger) (*announce.Announcer, *a11y.Bus) {
	var (
		bus *a11y.Bus
		err error
	)
	if cfg.Bus.Address != "" {
		bus, err = a11y.ConnectAddress(cfg.Bus.Address, log.WithComponent("a11y"))
	} else {
		bus, err = a11y.Connect(log.WithComponent("a11y"))
	}
	if err != nil {
		log.Warn("session bus unavailable, speech disabled", "error", err)
		bus = nil
	} else {
		switch cfg.Bus.Override {
		case config.OverrideEnabled:
			bus.SetOverride(true)
		case config.OverrideDisabled:
			bus.SetOverride(false)
		}
	}

	table, err := loadTable(cfg)
	if err != nil {
		log.Warn("keymap load failed, using bundled table",
			"path", cfg.Keymap.Path, "error", err)
		table = keydesc.Default().WithForced(cfg.Keymap.Forced...)
	}

	identity := settings.Identity{Package: cfg.IME.Package, Class: cfg.IME.Class}
	phrases := announce.DefaultPhrases().Merge(cfg.Phrases)

	// A nil *Bus must not become a non-nil Channel.
	var channel announce.Channel
	if bus != nil {
		channel = bus
	}

	return announce.New(identity, table, channel, phrases, log.WithComponent("announcer")), bus
}

// loadTable reads the configured key description resource and overlays
// the configured forced codes.
func loadTable(cfg *config.Config) (*keydesc.Table, error) {
	if cfg.Keymap.Path == "" {
		return keydesc.Default().WithForced(cfg.Keymap.Forced...), nil
	}
	table, err := keydesc.Load(cfg.Keymap.Path)
	if err != nil {
		return nil, err
	}
	return table.WithForced(cfg.Keymap.Forced...), nil
}

// newLogger builds the logger from the logging configuration section.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	format := logging.FormatText
	if cfg.Logging.Format == "json" {
		format = logging.FormatJSON
	}

	return logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "ibus",
	})
}

func installComponent() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	componentDir := filepath.Join(home, ".local", "share", "ibus", "component")
	if err := os.MkdirAll(componentDir, 0755); err != nil {
		return err
	}

	binPath, err := os.Executable()
	if err != nil {
		binPath = "/usr/local/bin/keyspeakd-ibus"
	}

	componentXML := `<?xml version="1.0" encoding="utf-8"?>
<component>
    <name>com.keyspeakd.ibus</name>
    <description>Spoken key announcements for screen reader users</description>
    <exec>` + binPath + `</exec>
    <version>1.0.0</version>
    <author>keyspeakd</author>
    <license>MIT</license>
    <homepage>https://github.com/keyspeakd/keyspeakd</homepage>
    <textdomain>keyspeakd</textdomain>
    <engines>
        <engine>
            <name>` + ime.EngineName + `</name>
            <language>en</language>
            <license>MIT</license>
            <author>keyspeakd</author>
            <icon>input-keyboard</icon>
            <layout>us</layout>
            <longname>Keyspeak</longname>
            <description>Announces keys through the screen reader</description>
            <rank>99</rank>
            <symbol>K</symbol>
        </engine>
    </engines>
</component>`

	componentPath := filepath.Join(componentDir, "keyspeakd.xml")
	return os.WriteFile(componentPath, []byte(componentXML), 0644)
}

func uninstallComponent() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	componentPath := filepath.Join(home, ".local", "share", "ibus", "component", "keyspeakd.xml")
	return os.Remove(componentPath)
}
