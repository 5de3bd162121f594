// Package announce implements the accessibility announcer: it resolves
// pressed and released keys to spoken descriptions and dispatches them
// as accessibility events for a screen reader.
//
// Every operation degrades to a silent no-op when accessibility is off
// or the platform channel is unavailable. Announcements must never
// block, error, or panic; the typing path always wins.
package announce

import (
	"unicode"
	"unicode/utf8"

	"keyspeakd/internal/keydesc"
	"keyspeakd/internal/keys"
	"keyspeakd/internal/logging"
	"keyspeakd/internal/settings"
)

// Channel is the platform accessibility broadcast channel. Enabled
// never errors; an absent service reads as false. Send is
// fire-and-forget with no return value.
type Channel interface {
	Enabled() bool
	Send(Event)
}

// Mode is a read-only view of the keyboard mode state, supplied by the
// keyboard switching layer.
type Mode interface {
	// AlphabetMode reports whether the alphabet layout is active, as
	// opposed to the symbols layout.
	AlphabetMode() bool

	// ShiftedOrLocked reports whether shift is active, latched or
	// locked.
	ShiftedOrLocked() bool

	// ShiftLocked reports whether shift is locked (caps lock).
	ShiftLocked() bool
}

// neutralMode stands in when a caller passes a nil mode view; it reads
// as alphabet layout, unshifted.
type neutralMode struct{}

func (neutralMode) AlphabetMode() bool    { return true }
func (neutralMode) ShiftedOrLocked() bool { return false }
func (neutralMode) ShiftLocked() bool     { return false }

// Announcer resolves key events to spoken descriptions and hands them
// to the accessibility channel. Construct one per input method session.
type Announcer struct {
	identity settings.Identity
	table    *keydesc.Table
	channel  Channel
	phrases  Phrases
	log      *logging.Logger
}

// New creates an Announcer. A nil table falls back to the bundled
// description table; zero phrases fall back to the bundled phrases.
func New(identity settings.Identity, table *keydesc.Table, channel Channel, phrases Phrases, log *logging.Logger) *Announcer {
	if table == nil {
		table = keydesc.Default()
	}
	if phrases == (Phrases{}) {
		phrases = DefaultPhrases()
	}
	if log == nil {
		log = logging.Default().WithComponent("announcer")
	}
	return &Announcer{
		identity: identity,
		table:    table,
		channel:  channel,
		phrases:  phrases,
		log:      log,
	}
}

// Identity returns the package/class identity stamped on events.
func (a *Announcer) Identity() settings.Identity {
	return a.identity
}

// Table returns the active key description table.
func (a *Announcer) Table() *keydesc.Table {
	return a.table
}

// Enabled reports whether accessibility announcements are currently
// active. Always succeeds; a missing channel reads as false.
func (a *Announcer) Enabled() bool {
	return a.channel != nil && a.channel.Enabled()
}

// OnPress announces a pressed key using the full resolution chain. The
// mode view is accepted for callback symmetry with OnRelease; pressing
// does not consult it.
func (a *Announcer) OnPress(key keys.Key, _ Mode) {
	a.SpeakKey(key)
}

// OnRelease announces a released functional or modifier key. Ordinary
// character keys produce nothing here: the text-changed path already
// announces typed characters downstream.
func (a *Announcer) OnRelease(key keys.Key, mode Mode) {
	if !a.Enabled() {
		return
	}
	if mode == nil {
		mode = neutralMode{}
	}

	var text string
	switch key.Code {
	case keys.CodeShift:
		text = a.shiftPhrase(mode)
	case keys.CodeModeChange:
		if mode.AlphabetMode() {
			text = a.phrases.SymbolsOff
		} else {
			text = a.phrases.SymbolsOn
		}
	case keys.CodeBack:
		text = a.phrases.Back
	case keys.CodeHome:
		text = a.phrases.Home
	case keys.CodeSearch:
		text = a.phrases.Search
	case keys.CodeMenu:
		text = a.phrases.Menu
	case keys.CodeCall:
		text = a.phrases.Call
	case keys.CodeEndCall:
		// The end-call key backs out of the call screen, so it reads
		// as the back key.
		text = a.phrases.Back
	default:
		return
	}

	a.Speak(text)
}

// shiftPhrase picks the shift release phrase from layout and shift
// state.
func (a *Announcer) shiftPhrase(mode Mode) string {
	if mode.AlphabetMode() {
		if mode.ShiftedOrLocked() {
			if mode.ShiftLocked() {
				return a.phrases.ShiftLocked
			}
			return a.phrases.ShiftOn
		}
		return a.phrases.ShiftOff
	}
	if mode.ShiftedOrLocked() {
		if mode.ShiftLocked() {
			return a.phrases.AltLocked
		}
		return a.phrases.AltOn
	}
	return a.phrases.AltOff
}

// Describe resolves a key to its spoken description without speaking
// it, first match wins: forced table text over the label, then the
// literal label, then the table text, then the printable character
// itself. Keys with no description report ok false.
func (a *Announcer) Describe(key keys.Key) (string, bool) {
	switch {
	case a.table.Forced(key.Code):
		return a.table.Describe(key.Code)
	case key.Label != "":
		return key.Label, true
	case a.table.Has(key.Code):
		return a.table.Describe(key.Code)
	case keys.Printable(key.Code):
		return string(rune(key.Code)), true
	}
	return "", false
}

// SpeakKey announces a key through the description resolution chain.
// Keys that resolve to nothing are silently skipped.
func (a *Announcer) SpeakKey(key keys.Key) {
	if !a.Enabled() {
		return
	}

	text, ok := a.Describe(key)
	if !ok {
		a.log.Debug("no description for key", "code", key.Code, "name", keys.CodeName(key.Code))
		return
	}
	a.Speak(text)
}

// Speak dispatches arbitrary text as one announcement event. Empty
// text is a no-op. Text starting with a letter or digit gets a
// trailing period appended; the downstream speech engine pauses at
// sentence boundaries, and without the period consecutive
// announcements run together. Keep the quirk: it is a workaround, not
// a bug.
func (a *Announcer) Speak(text string) {
	if !a.Enabled() {
		return
	}
	if text == "" {
		return
	}

	first, _ := utf8.DecodeRuneInString(text)
	if unicode.IsLetter(first) || unicode.IsDigit(first) {
		text += "."
	}

	a.channel.Send(Event{
		Kind:       KindTextChanged,
		Package:    a.identity.Package,
		Class:      a.identity.Class,
		AddedCount: utf8.RuneCountInString(text),
		EventTime:  uptimeMillis(),
		Text:       text,
		Token:      DedupToken,
	})
}
