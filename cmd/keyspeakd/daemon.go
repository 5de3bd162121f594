// Daemon wiring: the announcement monitor, history store, and control
// socket around a shared announcer.
package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"keyspeakd/internal/a11y"
	"keyspeakd/internal/announce"
	"keyspeakd/internal/config"
	"keyspeakd/internal/history"
	"keyspeakd/internal/ipc"
	"keyspeakd/internal/keydesc"
	"keyspeakd/internal/logging"
	"keyspeakd/internal/metrics"
	"keyspeakd/internal/settings"
)

// daemon owns the long-running subsystems. Speech-path failures degrade
// to logged no-ops; only history and the control socket are allowed to
// fail startup.
type daemon struct {
	cfg *config.Config
	log *logging.Logger

	bus      *a11y.Bus
	settings *settings.File
	monitor  *a11y.Monitor
	store    *history.Store
	server   *ipc.Server
	handler  *ipc.DaemonHandler
	metrics  *metrics.DaemonMetrics
	registry *metrics.Registry

	phrases announce.Phrases

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	done     chan struct{}
	stopOnce sync.Once
}

func newDaemon(cfg *config.Config, log *logging.Logger) *daemon {
	ctx, cancel := context.WithCancel(context.Background())
	registry := metrics.NewRegistry("keyspeakd")

	return &daemon{
		cfg:      cfg,
		log:      log,
		registry: registry,
		metrics:  metrics.NewDaemonMetrics(registry),
		phrases:  announce.DefaultPhrases().Merge(cfg.Phrases),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start brings up settings, the bus, the announcer, history, the
// monitor, and the control socket, in that order.
func (d *daemon) Start() error {
	d.startSettings()
	d.connectBus()

	table, err := d.loadTable(d.cfg.Keymap.Path)
	if err != nil {
		d.log.Warn("keymap load failed, using bundled table",
			"path", d.cfg.Keymap.Path, "error", err)
		table = keydesc.Default().WithForced(d.cfg.Keymap.Forced...)
	}
	announcer := d.newAnnouncer(table)

	if err := d.openHistory(); err != nil {
		return err
	}
	d.startMonitor()
	return d.startServer(announcer)
}

// startSettings loads the settings file and, when configured, follows
// its changes.
func (d *daemon) startSettings() {
	d.settings = settings.NewFile(d.cfg.Settings.Path)
	if err := d.settings.Load(); err != nil {
		d.log.Warn("settings load failed", "path", d.cfg.Settings.Path, "error", err)
	}

	if !d.cfg.Settings.Watch {
		return
	}
	d.settings.OnChange(func() {
		d.metrics.RecordSettingsReload()
		d.log.Info("settings reloaded", "path", d.settings.Path())
	})
	if err := d.settings.Watch(); err != nil {
		d.log.Warn("settings watch failed", "error", err)
	}
}

// connectBus opens the accessibility channel. A missing session bus
// leaves the daemon running with speech disabled.
func (d *daemon) connectBus() {
	var (
		bus *a11y.Bus
		err error
	)
	if d.cfg.Bus.Address != "" {
		bus, err = a11y.ConnectAddress(d.cfg.Bus.Address, d.log.WithComponent("a11y"))
	} else {
		bus, err = a11y.Connect(d.log.WithComponent("a11y"))
	}
	if err != nil {
		d.log.Warn("session bus unavailable, speech disabled", "error", err)
		d.metrics.SetBusConnected(false)
		return
	}

	switch d.cfg.Bus.Override {
	case config.OverrideEnabled:
		bus.SetOverride(true)
	case config.OverrideDisabled:
		bus.SetOverride(false)
	}

	d.bus = bus
	d.metrics.SetBusConnected(true)
}

// channel returns the announcer channel. A nil *Bus must not become a
// non-nil Channel.
func (d *daemon) channel() announce.Channel {
	if d.bus == nil {
		return nil
	}
	return d.bus
}

// loadTable reads a key description resource and overlays the
// configured forced codes. An empty path uses the bundled table.
func (d *daemon) loadTable(path string) (*keydesc.Table, error) {
	if path == "" {
		return keydesc.Default().WithForced(d.cfg.Keymap.Forced...), nil
	}
	table, err := keydesc.Load(path)
	if err != nil {
		return nil, err
	}
	return table.WithForced(d.cfg.Keymap.Forced...), nil
}

func (d *daemon) newAnnouncer(table *keydesc.Table) *announce.Announcer {
	identity := settings.Identity{Package: d.cfg.IME.Package, Class: d.cfg.IME.Class}
	return announce.New(identity, table, d.channel(), d.phrases, d.log.WithComponent("announcer"))
}

// openHistory opens the announcement store and applies the retention
// policy.
func (d *daemon) openHistory() error {
	if !d.cfg.History.Enabled {
		return nil
	}

	store, err := history.Open(d.cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	d.store = store

	if d.cfg.History.RetainDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -d.cfg.History.RetainDays).UnixNano()
		removed, err := store.PruneBefore(cutoff)
		if err != nil {
			d.log.Warn("history prune failed", "error", err)
		} else if removed > 0 {
			d.log.Info("history pruned", "removed", removed, "retain_days", d.cfg.History.RetainDays)
		}
	}
	return nil
}

// startMonitor subscribes to the announcement stream. Monitor failures
// degrade to a daemon that only serves the control socket.
func (d *daemon) startMonitor() {
	if !d.cfg.Monitor.Enabled {
		return
	}

	var (
		monitor *a11y.Monitor
		err     error
	)
	if d.cfg.Bus.Address != "" {
		monitor, err = a11y.NewMonitorAddress(d.cfg.Bus.Address, d.cfg.SuppressionWindow(), d.log.WithComponent("monitor"))
	} else {
		monitor, err = a11y.NewMonitor(d.cfg.SuppressionWindow(), d.log.WithComponent("monitor"))
	}
	if err != nil {
		d.log.Warn("monitor unavailable", "error", err)
		return
	}

	if err := monitor.Start(d.ctx); err != nil {
		monitor.Close()
		d.log.Warn("monitor subscribe failed", "error", err)
		return
	}
	d.monitor = monitor

	d.wg.Add(1)
	go d.consume()
}

// consume drains the monitor streams until shutdown.
func (d *daemon) consume() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case err := <-d.monitor.Errors():
			d.metrics.RecordMalformed()
			d.log.Warn("malformed announcement signal", "error", err)

		case n, ok := <-d.monitor.Events():
			if !ok {
				return
			}
			d.record(n)
		}
	}
}

// record counts one observed announcement and persists it.
func (d *daemon) record(n a11y.Notification) {
	d.metrics.RecordReceived()
	if n.Suppressed {
		d.metrics.RecordSuppressed()
	}
	if d.store == nil {
		return
	}

	_, err := d.store.Insert(&history.Record{
		ReceivedNs: time.Now().UnixNano(),
		Event:      n.Event,
		Suppressed: n.Suppressed,
	})
	d.metrics.RecordHistoryInsert(err)
	if err != nil {
		d.log.Warn("history insert failed", "error", err)
	}
}

// startServer builds the control handler and, when enabled, the socket
// server. The handler exists even without the server so SIGHUP reloads
// share one announcer-swap path.
func (d *daemon) startServer(announcer *announce.Announcer) error {
	d.handler = ipc.NewDaemonHandler(ipc.DaemonHandlerConfig{
		Version:   version,
		Announcer: announcer,
		Settings:  d.settings,
		History:   d.store,
		Metrics:   d.metrics,
		Registry:  d.registry,
		Reload:    d.reloadKeymap,
		Shutdown:  d.signalStop,
		Log:       d.log.WithComponent("handler"),
	})

	if !d.cfg.IPC.Enabled {
		return nil
	}

	d.server = ipc.NewServer(ipc.ServerConfig{
		SocketPath:     d.cfg.IPC.SocketPath,
		Version:        version,
		ReadTimeout:    d.cfg.IdleTimeout(),
		MaxConnections: d.cfg.IPC.MaxConnections,
	}, d.handler, d.log.WithComponent("ipc"))

	return d.server.Start()
}

// reloadKeymap rebuilds the announcer from a key description resource
// and swaps it into the handler. An empty path reloads the configured
// keymap.
func (d *daemon) reloadKeymap(path string) (int, error) {
	if path == "" {
		path = d.cfg.Keymap.Path
	}

	table, err := d.loadTable(path)
	if err != nil {
		return 0, err
	}

	d.handler.SetAnnouncer(d.newAnnouncer(table))
	d.log.Info("keymap reloaded", "entries", table.Len())
	return table.Len(), nil
}

// Reload re-reads the settings file and the keymap, for SIGHUP.
func (d *daemon) Reload() {
	if err := d.settings.Load(); err != nil {
		d.log.Warn("settings reload failed", "error", err)
	} else {
		d.metrics.RecordSettingsReload()
	}

	if _, err := d.reloadKeymap(""); err != nil {
		d.log.Warn("keymap reload failed", "error", err)
	}
}

// signalStop requests shutdown; the main loop completes it.
func (d *daemon) signalStop() {
	d.stopOnce.Do(func() { close(d.done) })
}

// Done closes when a shutdown has been requested over the control
// socket.
func (d *daemon) Done() <-chan struct{} {
	return d.done
}

// Stop shuts down the subsystems in reverse start order.
func (d *daemon) Stop() {
	if d.server != nil {
		d.server.Stop()
	}

	d.cancel()
	d.wg.Wait()

	if d.monitor != nil {
		d.monitor.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
	if d.settings != nil {
		d.settings.Close()
	}
	if d.bus != nil {
		d.bus.Close()
		d.metrics.SetBusConnected(false)
	}
}
