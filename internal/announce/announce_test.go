package announce

import (
	"testing"

	"keyspeakd/internal/keydesc"
	"keyspeakd/internal/keys"
	"keyspeakd/internal/settings"
)

// recordingChannel captures dispatched events for assertions.
type recordingChannel struct {
	enabled bool
	events  []Event
}

func (c *recordingChannel) Enabled() bool { return c.enabled }
func (c *recordingChannel) Send(e Event)  { c.events = append(c.events, e) }

// fakeMode is a fixed keyboard mode view.
type fakeMode struct {
	alphabet bool
	shifted  bool
	locked   bool
}

func (m fakeMode) AlphabetMode() bool    { return m.alphabet }
func (m fakeMode) ShiftedOrLocked() bool { return m.shifted || m.locked }
func (m fakeMode) ShiftLocked() bool     { return m.locked }

var testIdentity = settings.Identity{Package: "keyspeakd", Class: "KeyspeakEngine"}

func testTable(t *testing.T) *keydesc.Table {
	t.Helper()
	return keydesc.New([]any{
		int64(keys.CodeModeChange), "Symbols",
		int64(keys.CodeDelete), "Delete",
		int64(keys.CodeEnter), "Return",
	}, nil)
}

func newTestAnnouncer(t *testing.T) (*Announcer, *recordingChannel) {
	t.Helper()
	ch := &recordingChannel{enabled: true}
	a := New(testIdentity, testTable(t), ch, DefaultPhrases(), nil)
	return a, ch
}

func lastText(t *testing.T, ch *recordingChannel) string {
	t.Helper()
	if len(ch.events) == 0 {
		t.Fatal("no event dispatched")
	}
	return ch.events[len(ch.events)-1].Text
}

func TestSpeakKeyForcedOverridesLabel(t *testing.T) {
	a, ch := newTestAnnouncer(t)

	// The symbols key carries the printed label "?123", which is
	// wrong to speak; the forced table text must win.
	a.SpeakKey(keys.Key{Code: keys.CodeModeChange, Label: "?123"})

	if got := lastText(t, ch); got != "Symbols." {
		t.Errorf("forced key spoke %q, want %q", got, "Symbols.")
	}
}

func TestSpeakKeyLabelVerbatim(t *testing.T) {
	a, ch := newTestAnnouncer(t)

	a.SpeakKey(keys.Key{Code: 'q', Label: "q"})

	if got := lastText(t, ch); got != "q." {
		t.Errorf("labeled key spoke %q, want %q", got, "q.")
	}
}

func TestSpeakKeyTableWhenNoLabel(t *testing.T) {
	a, ch := newTestAnnouncer(t)

	a.SpeakKey(keys.Key{Code: keys.CodeDelete})

	if got := lastText(t, ch); got != "Delete." {
		t.Errorf("table key spoke %q, want %q", got, "Delete.")
	}
}

func TestSpeakKeyPrintableFallback(t *testing.T) {
	a, ch := newTestAnnouncer(t)

	a.SpeakKey(keys.Key{Code: 'z'})

	if got := lastText(t, ch); got != "z." {
		t.Errorf("printable key spoke %q, want %q", got, "z.")
	}
}

func TestSpeakKeyNoDescriptionNoDispatch(t *testing.T) {
	a, ch := newTestAnnouncer(t)

	// Unknown virtual code: not in the table, not forced, not printable.
	a.SpeakKey(keys.Key{Code: -1000})

	if len(ch.events) != 0 {
		t.Errorf("expected no dispatch, got %d events", len(ch.events))
	}
}

func TestSpeakTrailingPeriod(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"digit first", "5 apples", "5 apples."},
		{"letter first", "Shift on", "Shift on."},
		{"period unchanged", ".", "."},
		{"exclamation unchanged", "!", "!"},
		{"space first unchanged", " five", " five"},
		{"unicode letter first", "éclair", "éclair."},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a, ch := newTestAnnouncer(t)
			a.Speak(test.text)
			if got := lastText(t, ch); got != test.expected {
				t.Errorf("Speak(%q) dispatched %q, want %q", test.text, got, test.expected)
			}
		})
	}
}

func TestSpeakEmptyNoDispatch(t *testing.T) {
	a, ch := newTestAnnouncer(t)

	a.Speak("")

	if len(ch.events) != 0 {
		t.Errorf("expected no dispatch for empty text, got %d events", len(ch.events))
	}
}

func TestSpeakEventFields(t *testing.T) {
	a, ch := newTestAnnouncer(t)

	a.Speak("5 apples")

	if len(ch.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(ch.events))
	}
	e := ch.events[0]

	if e.Kind != KindTextChanged {
		t.Errorf("Kind = %v, want %v", e.Kind, KindTextChanged)
	}
	if e.Package != testIdentity.Package {
		t.Errorf("Package = %q, want %q", e.Package, testIdentity.Package)
	}
	if e.Class != testIdentity.Class {
		t.Errorf("Class = %q, want %q", e.Class, testIdentity.Class)
	}
	if e.Text != "5 apples." {
		t.Errorf("Text = %q, want %q", e.Text, "5 apples.")
	}
	if e.AddedCount != len([]rune("5 apples.")) {
		t.Errorf("AddedCount = %d, want %d", e.AddedCount, len([]rune("5 apples.")))
	}
	if e.Token != DedupToken {
		t.Errorf("Token = %d, want %d", e.Token, DedupToken)
	}
	if e.Token == 0 {
		t.Error("token must be non-zero to defeat duplicate suppression")
	}
	if e.EventTime < 0 {
		t.Errorf("EventTime = %d, want non-negative", e.EventTime)
	}
}

func TestEventTimeMonotonic(t *testing.T) {
	a, ch := newTestAnnouncer(t)

	a.Speak("first")
	a.Speak("second")

	if len(ch.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(ch.events))
	}
	if ch.events[1].EventTime < ch.events[0].EventTime {
		t.Errorf("EventTime went backwards: %d then %d",
			ch.events[0].EventTime, ch.events[1].EventTime)
	}
}

func TestDisabledChannelNoDispatch(t *testing.T) {
	ch := &recordingChannel{enabled: false}
	a := New(testIdentity, testTable(t), ch, DefaultPhrases(), nil)
	mode := fakeMode{alphabet: true}

	a.OnPress(keys.Key{Code: 'a'}, mode)
	a.OnRelease(keys.Key{Code: keys.CodeShift}, mode)
	a.SpeakKey(keys.Key{Code: keys.CodeDelete})
	a.Speak("hello")

	if len(ch.events) != 0 {
		t.Errorf("disabled channel must see zero dispatches, got %d", len(ch.events))
	}
	if a.Enabled() {
		t.Error("Enabled() must report false")
	}
}

func TestNilChannelSafe(t *testing.T) {
	a := New(testIdentity, testTable(t), nil, DefaultPhrases(), nil)

	if a.Enabled() {
		t.Error("nil channel must read as disabled")
	}
	// Must not panic.
	a.OnPress(keys.Key{Code: 'a'}, fakeMode{alphabet: true})
	a.Speak("hello")
}

func TestOnReleaseShiftPhrases(t *testing.T) {
	tests := []struct {
		name     string
		mode     fakeMode
		expected string
	}{
		{"alphabet unshifted", fakeMode{alphabet: true}, "Shift off."},
		{"alphabet shifted", fakeMode{alphabet: true, shifted: true}, "Shift on."},
		{"alphabet caps locked", fakeMode{alphabet: true, locked: true}, "Shift locked."},
		{"symbols unshifted", fakeMode{}, "Alt off."},
		{"symbols shifted", fakeMode{shifted: true}, "Alt on."},
		{"symbols locked", fakeMode{locked: true}, "Alt locked."},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a, ch := newTestAnnouncer(t)
			a.OnRelease(keys.Key{Code: keys.CodeShift}, test.mode)
			if got := lastText(t, ch); got != test.expected {
				t.Errorf("shift release spoke %q, want %q", got, test.expected)
			}
		})
	}
}

func TestOnReleaseModeChange(t *testing.T) {
	tests := []struct {
		name     string
		mode     fakeMode
		expected string
	}{
		{"now alphabet", fakeMode{alphabet: true}, "Symbols off."},
		{"now symbols", fakeMode{}, "Symbols on."},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a, ch := newTestAnnouncer(t)
			a.OnRelease(keys.Key{Code: keys.CodeModeChange}, test.mode)
			if got := lastText(t, ch); got != test.expected {
				t.Errorf("mode change release spoke %q, want %q", got, test.expected)
			}
		})
	}
}

func TestOnReleaseNavigationKeys(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected string
	}{
		{"back", keys.CodeBack, "Back."},
		{"home", keys.CodeHome, "Home."},
		{"search", keys.CodeSearch, "Search."},
		{"menu", keys.CodeMenu, "Menu."},
		{"call", keys.CodeCall, "Call."},
		{"end call reads as back", keys.CodeEndCall, "Back."},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a, ch := newTestAnnouncer(t)
			a.OnRelease(keys.Key{Code: test.code}, fakeMode{alphabet: true})
			if got := lastText(t, ch); got != test.expected {
				t.Errorf("release spoke %q, want %q", got, test.expected)
			}
		})
	}
}

func TestOnReleaseOrdinaryKeySilent(t *testing.T) {
	a, ch := newTestAnnouncer(t)

	a.OnRelease(keys.Key{Code: 'a'}, fakeMode{alphabet: true})
	a.OnRelease(keys.Key{Code: keys.CodeDelete}, fakeMode{alphabet: true})

	if len(ch.events) != 0 {
		t.Errorf("ordinary key release must not announce, got %d events", len(ch.events))
	}
}

func TestOnReleaseNilModeSafe(t *testing.T) {
	a, ch := newTestAnnouncer(t)

	a.OnRelease(keys.Key{Code: keys.CodeShift}, nil)

	// Nil mode reads as alphabet unshifted.
	if got := lastText(t, ch); got != "Shift off." {
		t.Errorf("nil mode shift release spoke %q, want %q", got, "Shift off.")
	}
}

func TestOnPressUsesResolutionChain(t *testing.T) {
	a, ch := newTestAnnouncer(t)

	a.OnPress(keys.Key{Code: keys.CodeModeChange, Label: "?123"}, fakeMode{alphabet: true})

	if got := lastText(t, ch); got != "Symbols." {
		t.Errorf("press spoke %q, want %q", got, "Symbols.")
	}
}

func TestNewDefaults(t *testing.T) {
	ch := &recordingChannel{enabled: true}
	a := New(testIdentity, nil, ch, Phrases{}, nil)

	// Bundled table and phrases apply.
	a.SpeakKey(keys.Key{Code: keys.CodeDelete})
	if got := lastText(t, ch); got != "Delete." {
		t.Errorf("bundled table spoke %q, want %q", got, "Delete.")
	}

	a.OnRelease(keys.Key{Code: keys.CodeShift}, fakeMode{alphabet: true})
	if got := lastText(t, ch); got != "Shift off." {
		t.Errorf("bundled phrases spoke %q, want %q", got, "Shift off.")
	}
}

func TestDescribeResolvesWithoutSpeaking(t *testing.T) {
	// Describe works even while the channel is off and never dispatches.
	ch := &recordingChannel{enabled: false}
	a := New(testIdentity, testTable(t), ch, DefaultPhrases(), nil)

	text, ok := a.Describe(keys.Key{Code: keys.CodeDelete})
	if !ok || text != "Delete" {
		t.Errorf("Describe = (%q, %v), want (%q, true)", text, ok, "Delete")
	}

	if _, ok := a.Describe(keys.Key{Code: -1000}); ok {
		t.Error("Describe of an unknown key reported ok")
	}

	if len(ch.events) != 0 {
		t.Errorf("Describe dispatched %d events", len(ch.events))
	}
}
