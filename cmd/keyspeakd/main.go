// keyspeakd is the announcement monitor daemon. It observes the
// accessibility announcement stream on the session bus, records it to
// history, and serves a control socket for inspection and on-demand
// speech.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"keyspeakd/internal/config"
	"keyspeakd/internal/ipc"
	"keyspeakd/internal/logging"
)

var (
	// Version information (set at build time)
	version = "dev"
)

var (
	configPath  = flag.String("config", "", "path to config file")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("keyspeakd %s\n", version)
		return
	}

	cfg, err := config.LoadOrCreate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directories: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(log)
	defer log.Close()

	if cfg.IPC.Enabled && ipc.IsSocketListening(cfg.IPC.SocketPath) {
		fmt.Fprintln(os.Stderr, "keyspeakd is already running")
		os.Exit(1)
	}

	d := newDaemon(cfg, log)
	if err := d.Start(); err != nil {
		log.Error("startup failed", "error", err)
		d.Stop()
		os.Exit(1)
	}

	log.Info("keyspeakd started", "version", version)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				log.Info("reloading on SIGHUP")
				d.Reload()
				continue
			}
			log.Info("shutting down", "signal", sig.String())
			d.Stop()
			return

		case <-d.Done():
			log.Info("shutting down on control request")
			d.Stop()
			return
		}
	}
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
		Component: "keyspeakd",
	})
}
