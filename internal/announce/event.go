package announce

// Kind is the accessibility event kind.
type Kind uint32

// KindTextChanged marks an announcement as a text change, the kind the
// downstream screen reader speaks verbatim.
const KindTextChanged Kind = 16

// String returns the readable event kind.
func (k Kind) String() string {
	switch k {
	case KindTextChanged:
		return "text-changed"
	default:
		return "unknown"
	}
}

// DedupToken is the fixed auxiliary payload attached to every event.
// The downstream consumer suppresses consecutive events that compare
// equal; a non-zero token makes every event compare distinct, so two
// identical announcements in a row are both spoken. Zero means "no
// token" on the wire.
const DedupToken uint32 = 1

// Event is one spoken utterance handed to the accessibility channel.
// It is created per announcement and owned by the channel afterwards.
type Event struct {
	// Kind is the event kind, always KindTextChanged for announcements.
	Kind Kind `json:"kind"`

	// Package and Class identify the announcing input method.
	Package string `json:"package"`
	Class   string `json:"class"`

	// AddedCount is the character count of Text.
	AddedCount int `json:"added_count"`

	// EventTime is the monotonic uptime timestamp in milliseconds.
	EventTime int64 `json:"event_time_ms"`

	// Text is the utterance.
	Text string `json:"text"`

	// Token is the duplicate-suppression-defeating payload.
	Token uint32 `json:"token"`
}
