// Package metrics provides lightweight operational counters for keyspeakd.
package metrics

import (
	"time"
)

// DaemonMetrics holds all keyspeakd-specific metrics.
type DaemonMetrics struct {
	registry *Registry

	// Counters
	AnnouncementsReceived   *Counter
	AnnouncementsSuppressed *Counter
	AnnouncementsMalformed  *Counter
	SpeakRequests           *Counter
	HistoryInserts          *Counter
	HistoryErrors           *Counter
	SettingsReloads         *Counter
	ErrorsTotal             *Counter

	// Gauges
	UptimeSeconds   *Gauge
	BusConnected    *Gauge
	LastEventUnixMs *Gauge
	ActiveClients   *Gauge
}

// startTime records when metrics were initialized.
var startTime = time.Now()

// NewDaemonMetrics creates and registers all keyspeakd metrics.
func NewDaemonMetrics(registry *Registry) *DaemonMetrics {
	if registry == nil {
		registry = Default()
	}

	return &DaemonMetrics{
		registry: registry,

		AnnouncementsReceived: registry.RegisterCounter(
			"announcements_received_total",
			"Total number of announcement events observed on the bus",
		),
		AnnouncementsSuppressed: registry.RegisterCounter(
			"announcements_suppressed_total",
			"Total number of duplicate announcements suppressed",
		),
		AnnouncementsMalformed: registry.RegisterCounter(
			"announcements_malformed_total",
			"Total number of announcement signals that failed to decode",
		),
		SpeakRequests: registry.RegisterCounter(
			"speak_requests_total",
			"Total number of speak requests served over the control socket",
		),
		HistoryInserts: registry.RegisterCounter(
			"history_inserts_total",
			"Total number of announcements recorded to history",
		),
		HistoryErrors: registry.RegisterCounter(
			"history_errors_total",
			"Total number of history write failures",
		),
		SettingsReloads: registry.RegisterCounter(
			"settings_reloads_total",
			"Total number of settings file reloads",
		),
		ErrorsTotal: registry.RegisterCounter(
			"errors_total",
			"Total number of errors",
		),

		UptimeSeconds: registry.RegisterGauge(
			"uptime_seconds",
			"Number of seconds the daemon has been running",
		),
		BusConnected: registry.RegisterGauge(
			"bus_connected",
			"Whether the session bus connection is up (1) or down (0)",
		),
		LastEventUnixMs: registry.RegisterGauge(
			"last_event_unix_ms",
			"Wall-clock time of the last observed announcement in milliseconds",
		),
		ActiveClients: registry.RegisterGauge(
			"active_clients",
			"Number of currently connected control socket clients",
		),
	}
}

// RecordReceived records an observed announcement.
func (m *DaemonMetrics) RecordReceived() {
	m.AnnouncementsReceived.Inc()
	m.LastEventUnixMs.Set(time.Now().UnixMilli())
}

// RecordSuppressed records a suppressed duplicate.
func (m *DaemonMetrics) RecordSuppressed() {
	m.AnnouncementsSuppressed.Inc()
}

// RecordMalformed records a signal that failed to decode.
func (m *DaemonMetrics) RecordMalformed() {
	m.AnnouncementsMalformed.Inc()
}

// RecordSpeakRequest records a speak request from the control socket.
func (m *DaemonMetrics) RecordSpeakRequest() {
	m.SpeakRequests.Inc()
}

// RecordHistoryInsert records a history write.
func (m *DaemonMetrics) RecordHistoryInsert(err error) {
	if err != nil {
		m.HistoryErrors.Inc()
		m.ErrorsTotal.Inc()
		return
	}
	m.HistoryInserts.Inc()
}

// RecordSettingsReload records a settings file reload.
func (m *DaemonMetrics) RecordSettingsReload() {
	m.SettingsReloads.Inc()
}

// RecordError records an error.
func (m *DaemonMetrics) RecordError() {
	m.ErrorsTotal.Inc()
}

// ClientConnected records a new control socket client.
func (m *DaemonMetrics) ClientConnected() {
	m.ActiveClients.Inc()
}

// ClientDisconnected records a control socket client hangup.
func (m *DaemonMetrics) ClientDisconnected() {
	m.ActiveClients.Dec()
}

// SetBusConnected records the bus connection state.
func (m *DaemonMetrics) SetBusConnected(up bool) {
	if up {
		m.BusConnected.Set(1)
	} else {
		m.BusConnected.Set(0)
	}
}

// UpdateUptime updates the uptime gauge.
func (m *DaemonMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(startTime).Seconds()))
}

// Snapshot returns a snapshot of all metric values.
func (m *DaemonMetrics) Snapshot() map[string]int64 {
	m.UpdateUptime()
	return m.registry.Snapshot()
}
