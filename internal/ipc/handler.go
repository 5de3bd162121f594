package ipc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"keyspeakd/internal/announce"
	"keyspeakd/internal/history"
	"keyspeakd/internal/keys"
	"keyspeakd/internal/logging"
	"keyspeakd/internal/metrics"
	"keyspeakd/internal/settings"
)

// DaemonHandler implements the Handler interface for the keyspeakd
// daemon. It fronts the announcer, the settings provider, and the
// announcement history for control socket clients.
type DaemonHandler struct {
	mu        sync.RWMutex
	version   string
	startedAt time.Time
	log       *logging.Logger

	announcer *announce.Announcer
	settings  settings.Provider
	history   *history.Store
	metrics   *metrics.DaemonMetrics
	registry  *metrics.Registry

	reload   func(path string) (int, error)
	shutdown func()
}

// DaemonHandlerConfig configures the daemon handler. History, Settings,
// Metrics, Reload, and Shutdown may be nil; the matching operations
// degrade or report errors.
type DaemonHandlerConfig struct {
	Version   string
	Announcer *announce.Announcer
	Settings  settings.Provider
	History   *history.Store
	Metrics   *metrics.DaemonMetrics
	Registry  *metrics.Registry
	Reload    func(path string) (int, error)
	Shutdown  func()
	Log       *logging.Logger
}

// NewDaemonHandler creates a new daemon handler.
func NewDaemonHandler(cfg DaemonHandlerConfig) *DaemonHandler {
	log := cfg.Log
	if log == nil {
		log = logging.Default().WithComponent("handler")
	}

	return &DaemonHandler{
		version:   cfg.Version,
		startedAt: time.Now(),
		log:       log,
		announcer: cfg.Announcer,
		settings:  cfg.Settings,
		history:   cfg.History,
		metrics:   cfg.Metrics,
		registry:  cfg.Registry,
		reload:    cfg.Reload,
		shutdown:  cfg.Shutdown,
	}
}

// SetAnnouncer swaps the active announcer, after a keymap reload.
func (h *DaemonHandler) SetAnnouncer(a *announce.Announcer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.announcer = a
}

// getAnnouncer returns the active announcer.
func (h *DaemonHandler) getAnnouncer() *announce.Announcer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.announcer
}

// HandleMessage processes an IPC message.
func (h *DaemonHandler) HandleMessage(ctx context.Context, conn *ClientConn, msg *Message) (*Message, error) {
	switch msg.Header.Type {
	case MsgStatus:
		return h.handleStatus(msg)

	case MsgSpeak:
		return h.handleSpeak(msg)

	case MsgSpeakKey:
		return h.handleSpeakKey(msg)

	case MsgDescribeKey:
		return h.handleDescribeKey(msg)

	case MsgHistory:
		return h.handleHistory(msg)

	case MsgPruneHistory:
		return h.handlePruneHistory(msg)

	case MsgCheckIME:
		return h.handleCheckIME(msg)

	case MsgReloadKeymap:
		return h.handleReloadKeymap(msg)

	case MsgShutdown:
		return h.handleShutdown(msg)

	default:
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest,
			fmt.Sprintf("unknown message type: %#04x", uint16(msg.Header.Type))), nil
	}
}

// handleStatus handles status requests.
func (h *DaemonHandler) handleStatus(msg *Message) (*Message, error) {
	var req StatusRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid request"), nil
		}
	}

	a := h.getAnnouncer()
	identity := a.Identity()

	resp := &StatusResponse{
		Version:              h.version,
		StartedAt:            h.startedAt,
		Uptime:               time.Since(h.startedAt),
		AccessibilityEnabled: a.Enabled(),
		KeymapEntries:        a.Table().Len(),
		InputMethod: IMEStatus{
			Identity: identity.ID(),
		},
	}

	if h.settings != nil {
		resp.InputMethod.Enabled = settings.InputMethodEnabled(h.settings, identity)
		resp.InputMethod.Default = settings.InputMethodDefault(h.settings, identity)
	}

	if h.history != nil {
		total, suppressed, err := h.history.Stats()
		if err != nil {
			h.log.Warn("history stats failed", "error", err)
		} else {
			resp.History = HistoryStatus{Enabled: true, Total: total, Suppressed: suppressed}
		}
	}

	if req.IncludeMetrics && h.registry != nil {
		resp.Metrics = h.registry.Snapshot()
	}

	return NewResponse(MsgStatusResp, msg.Header.RequestID, resp)
}

// handleSpeak handles arbitrary text announcements.
func (h *DaemonHandler) handleSpeak(msg *Message) (*Message, error) {
	var req SpeakRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid request"), nil
	}

	if h.metrics != nil {
		h.metrics.RecordSpeakRequest()
	}

	a := h.getAnnouncer()
	resp := &SpeakResponse{}
	switch {
	case req.Text == "":
		resp.Reason = "empty text"
	case !a.Enabled():
		resp.Reason = "accessibility disabled"
	default:
		a.Speak(req.Text)
		resp.Spoken = true
	}

	return NewResponse(MsgSpeakResp, msg.Header.RequestID, resp)
}

// handleSpeakKey announces a key through the description chain.
func (h *DaemonHandler) handleSpeakKey(msg *Message) (*Message, error) {
	var req SpeakKeyRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid request"), nil
	}

	if h.metrics != nil {
		h.metrics.RecordSpeakRequest()
	}

	a := h.getAnnouncer()
	key := keys.Key{Code: req.Code, Label: req.Label}

	resp := &SpeakKeyResponse{}
	text, ok := a.Describe(key)
	if !ok {
		resp.Reason = "no description"
		return NewResponse(MsgSpeakKeyResp, msg.Header.RequestID, resp)
	}

	resp.Described = true
	resp.Text = text
	if a.Enabled() {
		a.SpeakKey(key)
		resp.Spoken = true
	} else {
		resp.Reason = "accessibility disabled"
	}

	return NewResponse(MsgSpeakKeyResp, msg.Header.RequestID, resp)
}

// handleDescribeKey resolves a description without speaking.
func (h *DaemonHandler) handleDescribeKey(msg *Message) (*Message, error) {
	var req DescribeKeyRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid request"), nil
	}

	a := h.getAnnouncer()
	text, ok := a.Describe(keys.Key{Code: req.Code, Label: req.Label})

	return NewResponse(MsgDescribeKeyResp, msg.Header.RequestID, &DescribeKeyResponse{
		Described: ok,
		Text:      text,
	})
}

// handleHistory returns recent announcements.
func (h *DaemonHandler) handleHistory(msg *Message) (*Message, error) {
	if h.history == nil {
		return NewErrorMessage(msg.Header.RequestID, ErrHistoryDisabled, "history is disabled"), nil
	}

	var req HistoryRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid request"), nil
		}
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}

	var records []history.Record
	var err error
	if req.SinceNs > 0 {
		records, err = h.history.Range(req.SinceNs, time.Now().UnixNano())
	} else {
		records, err = h.history.Recent(req.Limit)
	}
	if err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInternalError, err.Error()), nil
	}

	total, suppressed, err := h.history.Stats()
	if err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInternalError, err.Error()), nil
	}

	resp := &HistoryResponse{
		Total:         total,
		Suppressed:    suppressed,
		Announcements: make([]AnnouncementInfo, 0, len(records)),
	}
	for _, r := range records {
		resp.Announcements = append(resp.Announcements, AnnouncementInfo{
			ID:          r.ID,
			ReceivedAt:  time.Unix(0, r.ReceivedNs),
			Text:        r.Event.Text,
			Package:     r.Event.Package,
			Class:       r.Event.Class,
			AddedCount:  r.Event.AddedCount,
			EventTimeMs: r.Event.EventTime,
			Token:       r.Event.Token,
			Suppressed:  r.Suppressed,
		})
	}

	return NewResponse(MsgHistoryResp, msg.Header.RequestID, resp)
}

// handlePruneHistory removes old announcements.
func (h *DaemonHandler) handlePruneHistory(msg *Message) (*Message, error) {
	if h.history == nil {
		return NewErrorMessage(msg.Header.RequestID, ErrHistoryDisabled, "history is disabled"), nil
	}

	var req PruneHistoryRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid request"), nil
	}
	if req.MaxAgeSeconds <= 0 {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "max age must be positive"), nil
	}

	cutoff := time.Now().Add(-time.Duration(req.MaxAgeSeconds) * time.Second).UnixNano()
	removed, err := h.history.PruneBefore(cutoff)
	if err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInternalError, err.Error()), nil
	}

	h.log.Info("history pruned", "removed", removed, "max_age_s", req.MaxAgeSeconds)
	return NewResponse(MsgPruneHistoryResp, msg.Header.RequestID, &PruneHistoryResponse{Removed: removed})
}

// handleCheckIME answers input method registration queries from the
// settings provider.
func (h *DaemonHandler) handleCheckIME(msg *Message) (*Message, error) {
	var req CheckIMERequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid request"), nil
		}
	}

	identity := h.getAnnouncer().Identity()
	if req.Package != "" || req.Class != "" {
		identity = settings.Identity{Package: req.Package, Class: req.Class}
	}

	resp := &CheckIMEResponse{Identity: identity.ID()}
	if h.settings != nil {
		resp.AccessibilityEnabled = settings.AccessibilityEnabled(h.settings)
		resp.Enabled = settings.InputMethodEnabled(h.settings, identity)
		resp.Default = settings.InputMethodDefault(h.settings, identity)
	}

	return NewResponse(MsgCheckIMEResp, msg.Header.RequestID, resp)
}

// handleReloadKeymap reloads the key description table.
func (h *DaemonHandler) handleReloadKeymap(msg *Message) (*Message, error) {
	if h.reload == nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "reload not supported"), nil
	}

	var req ReloadKeymapRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid request"), nil
		}
	}

	resp := &ReloadKeymapResponse{}
	entries, err := h.reload(req.Path)
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Success = true
		resp.Entries = entries
	}

	return NewResponse(MsgReloadKeymapResp, msg.Header.RequestID, resp)
}

// handleShutdown acknowledges, then stops the daemon.
func (h *DaemonHandler) handleShutdown(msg *Message) (*Message, error) {
	if h.shutdown == nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "shutdown not supported"), nil
	}

	h.log.Info("shutdown requested over control socket")

	// Give the acknowledgement a moment to reach the client.
	time.AfterFunc(100*time.Millisecond, h.shutdown)

	return NewMessage(MsgShutdownAck, msg.Header.RequestID, nil), nil
}
