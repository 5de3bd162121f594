package a11y

import (
	"strings"
	"testing"
	"time"

	"keyspeakd/internal/announce"
)

func validBody() []interface{} {
	return []interface{}{
		uint32(announce.KindTextChanged),
		"keyspeakd",
		"KeyspeakEngine",
		uint32(6),
		uint64(1234),
		"Shift on.",
		uint32(announce.DedupToken),
	}
}

func TestDecodeAnnouncement(t *testing.T) {
	event, err := decodeAnnouncement(validBody())
	if err != nil {
		t.Fatalf("decodeAnnouncement: %v", err)
	}

	if event.Kind != announce.KindTextChanged {
		t.Errorf("Kind = %d, want %d", event.Kind, announce.KindTextChanged)
	}
	if event.Package != "keyspeakd" {
		t.Errorf("Package = %q, want %q", event.Package, "keyspeakd")
	}
	if event.Class != "KeyspeakEngine" {
		t.Errorf("Class = %q, want %q", event.Class, "KeyspeakEngine")
	}
	if event.AddedCount != 6 {
		t.Errorf("AddedCount = %d, want 6", event.AddedCount)
	}
	if event.EventTime != 1234 {
		t.Errorf("EventTime = %d, want 1234", event.EventTime)
	}
	if event.Text != "Shift on." {
		t.Errorf("Text = %q, want %q", event.Text, "Shift on.")
	}
	if event.Token != announce.DedupToken {
		t.Errorf("Token = %d, want %d", event.Token, announce.DedupToken)
	}
}

func TestDecodeAnnouncementRejectsBadBodies(t *testing.T) {
	short := validBody()[:5]
	if _, err := decodeAnnouncement(short); err == nil {
		t.Error("short body: want error, got nil")
	}

	long := append(validBody(), "extra")
	if _, err := decodeAnnouncement(long); err == nil {
		t.Error("long body: want error, got nil")
	}

	// Each field replaced by a value of the wrong type.
	for i := 0; i < 7; i++ {
		body := validBody()
		body[i] = 3.14
		_, err := decodeAnnouncement(body)
		if err == nil {
			t.Errorf("field %d wrong type: want error, got nil", i)
			continue
		}
		if !strings.Contains(err.Error(), "float64") {
			t.Errorf("field %d error %q does not name the offending type", i, err)
		}
	}
}

func testMonitor(window time.Duration) *Monitor {
	return &Monitor{
		window: window,
		events: make(chan Notification, 8),
		errs:   make(chan error, 8),
	}
}

func textEvent(text string, token uint32) announce.Event {
	return announce.Event{
		Kind:  announce.KindTextChanged,
		Text:  text,
		Token: token,
	}
}

func TestObserveSuppressesUntokenedEcho(t *testing.T) {
	m := testMonitor(time.Second)
	base := time.Now()

	first := m.observe(textEvent("Back.", 0), base)
	if first.Suppressed {
		t.Error("first delivery suppressed")
	}

	echo := m.observe(textEvent("Back.", 0), base.Add(200*time.Millisecond))
	if !echo.Suppressed {
		t.Error("untokened echo inside the window not suppressed")
	}
	if echo.Event.Text != "Back." {
		t.Errorf("suppressed event Text = %q, want %q", echo.Event.Text, "Back.")
	}
}

func TestObserveTokenAlwaysPasses(t *testing.T) {
	m := testMonitor(time.Second)
	base := time.Now()

	m.observe(textEvent("q.", announce.DedupToken), base)
	repeat := m.observe(textEvent("q.", announce.DedupToken), base.Add(50*time.Millisecond))
	if repeat.Suppressed {
		t.Error("tokened repeat suppressed; token must defeat suppression")
	}
}

func TestObserveWindowExpiry(t *testing.T) {
	m := testMonitor(time.Second)
	base := time.Now()

	m.observe(textEvent("Home.", 0), base)
	late := m.observe(textEvent("Home.", 0), base.Add(2*time.Second))
	if late.Suppressed {
		t.Error("repeat after the window suppressed")
	}
}

func TestObserveDifferentTextPasses(t *testing.T) {
	m := testMonitor(time.Second)
	base := time.Now()

	m.observe(textEvent("Back.", 0), base)
	other := m.observe(textEvent("Home.", 0), base.Add(100*time.Millisecond))
	if other.Suppressed {
		t.Error("different text suppressed")
	}
}

func TestObserveEchoUpdatesState(t *testing.T) {
	// A suppressed echo still refreshes the window, so a steady
	// stream of identical untokened events stays suppressed.
	m := testMonitor(time.Second)
	base := time.Now()

	m.observe(textEvent("Menu.", 0), base)
	for i := 1; i <= 5; i++ {
		at := base.Add(time.Duration(i) * 800 * time.Millisecond)
		n := m.observe(textEvent("Menu.", 0), at)
		if !n.Suppressed {
			t.Fatalf("echo %d not suppressed", i)
		}
	}
}

func TestNewMonitorDefaults(t *testing.T) {
	m := newMonitor(nil, 0, nil)
	if m.window != DefaultSuppressionWindow {
		t.Errorf("window = %v, want %v", m.window, DefaultSuppressionWindow)
	}
	if m.log == nil {
		t.Error("log not defaulted")
	}
}
