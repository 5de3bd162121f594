// Package ipc provides local control-socket communication between the
// keyspeakd daemon and its clients.
//
// Messages are a fixed 16-byte binary header followed by a JSON
// payload, carried over a Unix socket restricted to the daemon's own
// user.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Protocol version for compatibility checking.
const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x4B535043 // "KSPC"
)

// MessageType identifies the type of IPC message.
type MessageType uint16

const (
	// Control messages (0x00xx)
	MsgPing        MessageType = 0x0001
	MsgPong        MessageType = 0x0002
	MsgError       MessageType = 0x0003
	MsgShutdown    MessageType = 0x0004
	MsgShutdownAck MessageType = 0x0005

	// Status (0x01xx)
	MsgStatus     MessageType = 0x0100
	MsgStatusResp MessageType = 0x0101

	// Speech (0x02xx)
	MsgSpeak        MessageType = 0x0200
	MsgSpeakResp    MessageType = 0x0201
	MsgSpeakKey     MessageType = 0x0202
	MsgSpeakKeyResp MessageType = 0x0203

	// History (0x03xx)
	MsgHistory          MessageType = 0x0300
	MsgHistoryResp      MessageType = 0x0301
	MsgPruneHistory     MessageType = 0x0302
	MsgPruneHistoryResp MessageType = 0x0303

	// Input method queries (0x04xx)
	MsgCheckIME     MessageType = 0x0400
	MsgCheckIMEResp MessageType = 0x0401

	// Keymap operations (0x05xx)
	MsgReloadKeymap     MessageType = 0x0500
	MsgReloadKeymapResp MessageType = 0x0501
	MsgDescribeKey      MessageType = 0x0502
	MsgDescribeKeyResp  MessageType = 0x0503
)

// Header is the fixed-size message header (16 bytes).
type Header struct {
	Magic     uint32      // Protocol magic number
	Version   uint8       // Protocol version
	Flags     uint8       // Message flags
	Type      MessageType // Message type
	RequestID uint32      // Request ID for correlation
	Length    uint32      // Payload length (not including header)
}

// HeaderSize is the size of the header in bytes.
const HeaderSize = 16

// FlagJSON marks a JSON-encoded payload. All current messages set it.
const FlagJSON uint8 = 0x01

// MaxPayload bounds a single message payload.
const MaxPayload = 16 * 1024 * 1024

// Message wraps a header and payload.
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage creates a new message with the given type and payload.
func NewMessage(msgType MessageType, requestID uint32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Flags:     FlagJSON,
			Type:      msgType,
			RequestID: requestID,
			Length:    uint32(len(payload)),
		},
		Payload: payload,
	}
}

// Write writes the header to a writer.
func (h *Header) Write(w io.Writer) error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Flags
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(buf[8:12], h.RequestID)
	binary.BigEndian.PutUint32(buf[12:16], h.Length)
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads a header from a reader.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	h := &Header{
		Magic:     binary.BigEndian.Uint32(buf[0:4]),
		Version:   buf[4],
		Flags:     buf[5],
		Type:      MessageType(binary.BigEndian.Uint16(buf[6:8])),
		RequestID: binary.BigEndian.Uint32(buf[8:12]),
		Length:    binary.BigEndian.Uint32(buf[12:16]),
	}

	if h.Magic != ProtocolMagic {
		return nil, fmt.Errorf("invalid magic number: %x", h.Magic)
	}

	if h.Version > ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}

	return h, nil
}

// Write writes the message to a writer.
func (m *Message) Write(w io.Writer) error {
	if err := m.Header.Write(w); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		_, err := w.Write(m.Payload)
		return err
	}
	return nil
}

// ReadMessage reads a complete message from a reader.
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: *h}
	if h.Length > 0 {
		if h.Length > MaxPayload {
			return nil, fmt.Errorf("payload too large: %d bytes", h.Length)
		}
		m.Payload = make([]byte, h.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Request/Response payloads

// ErrorResponse is sent when an operation fails.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error codes
const (
	ErrUnknown         = 1
	ErrInvalidRequest  = 2
	ErrNotFound        = 3
	ErrInternalError   = 4
	ErrSpeechDisabled  = 5
	ErrHistoryDisabled = 6
)

// StatusRequest requests daemon status.
type StatusRequest struct {
	IncludeMetrics bool `json:"include_metrics,omitempty"`
}

// IMEStatus reports the registration state of the daemon's input
// method identity.
type IMEStatus struct {
	Identity string `json:"identity"`
	Enabled  bool   `json:"enabled"`
	Default  bool   `json:"default"`
}

// HistoryStatus reports the announcement history store state.
type HistoryStatus struct {
	Enabled    bool  `json:"enabled"`
	Total      int64 `json:"total"`
	Suppressed int64 `json:"suppressed"`
}

// StatusResponse contains daemon status.
type StatusResponse struct {
	Version              string           `json:"version"`
	StartedAt            time.Time        `json:"started_at"`
	Uptime               time.Duration    `json:"uptime"`
	AccessibilityEnabled bool             `json:"accessibility_enabled"`
	KeymapEntries        int              `json:"keymap_entries"`
	InputMethod          IMEStatus        `json:"input_method"`
	History              HistoryStatus    `json:"history"`
	Metrics              map[string]int64 `json:"metrics,omitempty"`
}

// SpeakRequest asks the daemon to announce arbitrary text.
type SpeakRequest struct {
	Text string `json:"text"`
}

// SpeakResponse reports whether the text was dispatched.
type SpeakResponse struct {
	Spoken bool   `json:"spoken"`
	Reason string `json:"reason,omitempty"`
}

// SpeakKeyRequest asks the daemon to announce a key by code and
// optional label, through the normal description chain.
type SpeakKeyRequest struct {
	Code  int    `json:"code"`
	Label string `json:"label,omitempty"`
}

// SpeakKeyResponse reports the resolved description and whether it was
// dispatched.
type SpeakKeyResponse struct {
	Described bool   `json:"described"`
	Text      string `json:"text,omitempty"`
	Spoken    bool   `json:"spoken"`
	Reason    string `json:"reason,omitempty"`
}

// DescribeKeyRequest resolves a key description without speaking it.
type DescribeKeyRequest struct {
	Code  int    `json:"code"`
	Label string `json:"label,omitempty"`
}

// DescribeKeyResponse contains the resolved description.
type DescribeKeyResponse struct {
	Described bool   `json:"described"`
	Text      string `json:"text,omitempty"`
}

// HistoryRequest requests recent announcements.
type HistoryRequest struct {
	Limit   int   `json:"limit,omitempty"`
	SinceNs int64 `json:"since_ns,omitempty"`
}

// AnnouncementInfo is one history entry.
type AnnouncementInfo struct {
	ID          int64     `json:"id"`
	ReceivedAt  time.Time `json:"received_at"`
	Text        string    `json:"text"`
	Package     string    `json:"package"`
	Class       string    `json:"class"`
	AddedCount  int       `json:"added_count"`
	EventTimeMs int64     `json:"event_time_ms"`
	Token       uint32    `json:"token"`
	Suppressed  bool      `json:"suppressed"`
}

// HistoryResponse contains recent announcements plus store totals.
type HistoryResponse struct {
	Total         int64              `json:"total"`
	Suppressed    int64              `json:"suppressed"`
	Announcements []AnnouncementInfo `json:"announcements"`
}

// PruneHistoryRequest removes announcements older than the given age.
type PruneHistoryRequest struct {
	MaxAgeSeconds int64 `json:"max_age_seconds"`
}

// PruneHistoryResponse reports how many records were removed.
type PruneHistoryResponse struct {
	Removed int64 `json:"removed"`
}

// CheckIMERequest queries input method registration. Empty fields mean
// the daemon's own identity.
type CheckIMERequest struct {
	Package string `json:"package,omitempty"`
	Class   string `json:"class,omitempty"`
}

// CheckIMEResponse contains registration query results.
type CheckIMEResponse struct {
	Identity             string `json:"identity"`
	AccessibilityEnabled bool   `json:"accessibility_enabled"`
	Enabled              bool   `json:"enabled"`
	Default              bool   `json:"default"`
}

// ReloadKeymapRequest reloads the key description table. An empty path
// reloads the configured keymap.
type ReloadKeymapRequest struct {
	Path string `json:"path,omitempty"`
}

// ReloadKeymapResponse acknowledges the reload.
type ReloadKeymapResponse struct {
	Success bool   `json:"success"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

// Encode encodes a payload to JSON bytes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode decodes JSON bytes to a payload.
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewErrorMessage creates an error message.
func NewErrorMessage(requestID uint32, code int, message string) *Message {
	payload, _ := Encode(&ErrorResponse{
		Code:    code,
		Message: message,
	})
	return NewMessage(MsgError, requestID, payload)
}

// NewResponse creates a response message.
func NewResponse(msgType MessageType, requestID uint32, v any) (*Message, error) {
	payload, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return NewMessage(msgType, requestID, payload), nil
}
