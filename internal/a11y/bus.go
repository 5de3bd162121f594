// Package a11y carries announcements over the D-Bus session bus: an
// outbound channel the announcer dispatches into, and an inbound
// monitor that observes the announcement stream.
//
// The enablement question ("is a screen reader listening") is answered
// from the org.a11y.Status properties published by the accessibility
// bus launcher. A session without that service reads as disabled, and
// every send failure is logged and dropped; announcement plumbing never
// surfaces errors to the typing path.
package a11y

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"keyspeakd/internal/announce"
	"keyspeakd/internal/logging"
)

// Accessibility status object published by the a11y bus launcher.
const (
	StatusService   = "org.a11y.Bus"
	StatusPath      = dbus.ObjectPath("/org/a11y/bus")
	StatusInterface = "org.a11y.Status"
)

// Announcement signal identity.
const (
	AnnouncerPath      = dbus.ObjectPath("/com/keyspeakd/Announcer")
	AnnouncerInterface = "com.keyspeakd.Announcer"
	SignalAnnouncement = AnnouncerInterface + ".Announcement"
)

// propertiesChanged is the standard properties interface signal name.
const propertiesChanged = "org.freedesktop.DBus.Properties.PropertiesChanged"

// Bus is the outbound accessibility channel. It caches the screen
// reader enablement state and emits announcement signals.
type Bus struct {
	conn *dbus.Conn
	log  *logging.Logger

	mu       sync.RWMutex
	enabled  bool
	override *bool

	signals chan *dbus.Signal
	done    chan struct{}
}

// Connect opens the session bus and starts following the accessibility
// status.
func Connect(log *logging.Logger) (*Bus, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return newBus(conn, log)
}

// ConnectAddress opens a bus at an explicit address, for tests and
// containers without a standard session bus.
func ConnectAddress(address string, log *logging.Logger) (*Bus, error) {
	conn, err := dbus.Connect(address)
	if err != nil {
		return nil, fmt.Errorf("connect bus %s: %w", address, err)
	}
	return newBus(conn, log)
}

func newBus(conn *dbus.Conn, log *logging.Logger) (*Bus, error) {
	if log == nil {
		log = logging.Default().WithComponent("a11y")
	}

	b := &Bus{
		conn:    conn,
		log:     log,
		signals: make(chan *dbus.Signal, 16),
		done:    make(chan struct{}),
	}

	b.refreshEnabled()

	// Follow status property changes so Enabled stays a cheap cached
	// read on the key event path.
	err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(StatusPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	)
	if err != nil {
		b.log.Debug("status match unavailable", "error", err)
	} else {
		conn.Signal(b.signals)
		go b.watchStatus()
	}

	return b, nil
}

// refreshEnabled re-reads the status properties. Either property being
// true counts as enabled; an absent service reads as disabled.
func (b *Bus) refreshEnabled() {
	enabled := b.readStatusProperty("ScreenReaderEnabled") || b.readStatusProperty("IsEnabled")

	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()
}

// readStatusProperty reads one boolean org.a11y.Status property.
func (b *Bus) readStatusProperty(name string) bool {
	obj := b.conn.Object(StatusService, StatusPath)
	variant, err := obj.GetProperty(StatusInterface + "." + name)
	if err != nil {
		return false
	}
	value, ok := variant.Value().(bool)
	return ok && value
}

// watchStatus updates the cached enablement on property changes.
func (b *Bus) watchStatus() {
	for {
		select {
		case <-b.done:
			return
		case sig, ok := <-b.signals:
			if !ok {
				return
			}
			if sig.Name == propertiesChanged && sig.Path == StatusPath {
				b.refreshEnabled()
			}
		}
	}
}

// Enabled reports whether a screen reader is listening. An override,
// when set, wins over the platform state.
func (b *Bus) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.override != nil {
		return *b.override
	}
	return b.enabled
}

// SetOverride forces the enablement state, for configuration and
// tests.
func (b *Bus) SetOverride(enabled bool) {
	b.mu.Lock()
	b.override = &enabled
	b.mu.Unlock()
}

// ClearOverride returns Enabled to the platform state.
func (b *Bus) ClearOverride() {
	b.mu.Lock()
	b.override = nil
	b.mu.Unlock()
}

// Send emits one announcement signal. Fire-and-forget: emission
// failures are logged and dropped.
func (b *Bus) Send(e announce.Event) {
	err := b.conn.Emit(AnnouncerPath, SignalAnnouncement,
		uint32(e.Kind),
		e.Package,
		e.Class,
		uint32(e.AddedCount),
		uint64(e.EventTime),
		e.Text,
		e.Token,
	)
	if err != nil {
		b.log.Debug("announcement emit failed", "error", err)
	}
}

// Close stops the status watcher and releases the bus connection.
func (b *Bus) Close() error {
	close(b.done)
	b.conn.RemoveSignal(b.signals)
	return b.conn.Close()
}
