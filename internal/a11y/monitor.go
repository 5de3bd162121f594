package a11y

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"keyspeakd/internal/announce"
	"keyspeakd/internal/logging"
)

// DefaultSuppressionWindow is how long an identical untokened
// announcement is considered an echo of the previous one.
const DefaultSuppressionWindow = time.Second

// Notification is one observed announcement. Suppressed marks echoes
// that a consumer should not voice; they are still delivered so the
// history can record them.
type Notification struct {
	Event      announce.Event
	Suppressed bool
}

// Monitor observes the announcement signal stream on the session bus
// and classifies echoes.
type Monitor struct {
	conn *dbus.Conn
	log  *logging.Logger

	window time.Duration

	events chan Notification
	errs   chan error
	sigs   chan *dbus.Signal

	// Previous delivery, for the suppression decision.
	lastText string
	lastAt   time.Time
	haveLast bool
}

// NewMonitor connects to the session bus and prepares the signal
// subscription. Start begins delivery.
func NewMonitor(window time.Duration, log *logging.Logger) (*Monitor, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return newMonitor(conn, window, log), nil
}

// NewMonitorAddress connects at an explicit bus address.
func NewMonitorAddress(address string, window time.Duration, log *logging.Logger) (*Monitor, error) {
	conn, err := dbus.Connect(address)
	if err != nil {
		return nil, fmt.Errorf("connect bus %s: %w", address, err)
	}
	return newMonitor(conn, window, log), nil
}

func newMonitor(conn *dbus.Conn, window time.Duration, log *logging.Logger) *Monitor {
	if window <= 0 {
		window = DefaultSuppressionWindow
	}
	if log == nil {
		log = logging.Default().WithComponent("monitor")
	}
	return &Monitor{
		conn:   conn,
		log:    log,
		window: window,
		events: make(chan Notification, 64),
		errs:   make(chan error, 8),
		sigs:   make(chan *dbus.Signal, 64),
	}
}

// Start subscribes to announcement signals and delivers them until the
// context is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	err := m.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(AnnouncerPath),
		dbus.WithMatchInterface(AnnouncerInterface),
		dbus.WithMatchMember("Announcement"),
	)
	if err != nil {
		return fmt.Errorf("subscribe announcements: %w", err)
	}
	m.conn.Signal(m.sigs)

	go m.run(ctx)
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.events)
	for {
		select {
		case <-ctx.Done():
			m.conn.RemoveSignal(m.sigs)
			return
		case sig, ok := <-m.sigs:
			if !ok {
				return
			}
			if sig.Name != SignalAnnouncement {
				continue
			}
			event, err := decodeAnnouncement(sig.Body)
			if err != nil {
				m.reportError(err)
				continue
			}
			n := m.observe(event, time.Now())
			select {
			case m.events <- n:
			case <-ctx.Done():
				m.conn.RemoveSignal(m.sigs)
				return
			}
		}
	}
}

// observe classifies one event against the previous delivery. A
// non-zero token always passes. An untokened event repeating the
// previous text inside the window is an echo.
func (m *Monitor) observe(event announce.Event, now time.Time) Notification {
	suppressed := false
	if event.Token == 0 && m.haveLast &&
		event.Text == m.lastText && now.Sub(m.lastAt) < m.window {
		suppressed = true
	}

	m.lastText = event.Text
	m.lastAt = now
	m.haveLast = true

	return Notification{Event: event, Suppressed: suppressed}
}

// Events delivers observed announcements. The channel closes when the
// Start context is cancelled.
func (m *Monitor) Events() <-chan Notification {
	return m.events
}

// Errors reports malformed signal bodies. Decode failures skip the
// signal, never stop the monitor.
func (m *Monitor) Errors() <-chan error {
	return m.errs
}

func (m *Monitor) reportError(err error) {
	select {
	case m.errs <- err:
	default:
		m.log.Debug("monitor error dropped", "error", err)
	}
}

// Close releases the bus connection.
func (m *Monitor) Close() error {
	return m.conn.Close()
}

// decodeAnnouncement checks the seven-field signal body emitted by
// Bus.Send.
func decodeAnnouncement(body []interface{}) (announce.Event, error) {
	if len(body) != 7 {
		return announce.Event{}, fmt.Errorf("announcement body has %d fields, want 7", len(body))
	}

	kind, ok := body[0].(uint32)
	if !ok {
		return announce.Event{}, fmt.Errorf("announcement kind is %T, want uint32", body[0])
	}
	pkg, ok := body[1].(string)
	if !ok {
		return announce.Event{}, fmt.Errorf("announcement package is %T, want string", body[1])
	}
	class, ok := body[2].(string)
	if !ok {
		return announce.Event{}, fmt.Errorf("announcement class is %T, want string", body[2])
	}
	added, ok := body[3].(uint32)
	if !ok {
		return announce.Event{}, fmt.Errorf("announcement added count is %T, want uint32", body[3])
	}
	eventTime, ok := body[4].(uint64)
	if !ok {
		return announce.Event{}, fmt.Errorf("announcement event time is %T, want uint64", body[4])
	}
	text, ok := body[5].(string)
	if !ok {
		return announce.Event{}, fmt.Errorf("announcement text is %T, want string", body[5])
	}
	token, ok := body[6].(uint32)
	if !ok {
		return announce.Event{}, fmt.Errorf("announcement token is %T, want uint32", body[6])
	}

	return announce.Event{
		Kind:       announce.Kind(kind),
		Package:    pkg,
		Class:      class,
		AddedCount: int(added),
		EventTime:  int64(eventTime),
		Text:       text,
		Token:      token,
	}, nil
}
