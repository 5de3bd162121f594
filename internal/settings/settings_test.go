package settings

import (
	"testing"
)

func TestStaticString(t *testing.T) {
	p := NewStatic(map[string]string{
		"default_input_method": "keyspeakd/KeyspeakEngine",
	})

	v, ok := p.String("default_input_method")
	if !ok || v != "keyspeakd/KeyspeakEngine" {
		t.Errorf("String = %q, %v", v, ok)
	}

	if _, ok := p.String("missing"); ok {
		t.Error("absent key must report ok=false")
	}
}

func TestStaticInt(t *testing.T) {
	p := NewStatic(map[string]string{
		"accessibility_enabled": "1",
		"padded":                " 7 ",
		"garbage":               "abc",
	})

	tests := []struct {
		key    string
		want   int
		wantOK bool
	}{
		{"accessibility_enabled", 1, true},
		{"padded", 7, true},
		{"garbage", 0, false},
		{"missing", 0, false},
	}
	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			v, ok := p.Int(test.key)
			if ok != test.wantOK || v != test.want {
				t.Errorf("Int(%q) = %d, %v; want %d, %v", test.key, v, ok, test.want, test.wantOK)
			}
		})
	}
}

func TestAccessibilityEnabled(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		present  bool
		expected bool
	}{
		{"exactly one", "1", true, true},
		{"zero", "0", true, false},
		{"two", "2", true, false},
		{"negative", "-1", true, false},
		{"garbage", "on", true, false},
		{"absent", "", false, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			values := map[string]string{}
			if test.present {
				values[KeyAccessibilityEnabled] = test.value
			}
			if got := AccessibilityEnabled(NewStatic(values)); got != test.expected {
				t.Errorf("AccessibilityEnabled = %v, want %v", got, test.expected)
			}
		})
	}
}

func TestInputMethodEnabled(t *testing.T) {
	id := Identity{Package: "keyspeakd", Class: "KeyspeakEngine"}

	tests := []struct {
		name     string
		enabled  string
		present  bool
		expected bool
	}{
		{"listed", "keyspeakd/KeyspeakEngine", true, true},
		{"listed among others", "anthy/Anthy:keyspeakd/KeyspeakEngine:mozc/Mozc", true, true},
		{"package only", "keyspeakd/OtherEngine", true, false},
		{"class only", "other/KeyspeakEngine", true, false},
		{"neither", "anthy/Anthy", true, false},
		{"absent", "", false, false},
		// Substring matching is loose on purpose: both names present
		// anywhere in the list match, even across separate entries.
		{"split across entries", "keyspeakd/Other:foo/KeyspeakEngine", true, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			values := map[string]string{}
			if test.present {
				values[KeyEnabledInputMethods] = test.enabled
			}
			if got := InputMethodEnabled(NewStatic(values), id); got != test.expected {
				t.Errorf("InputMethodEnabled = %v, want %v", got, test.expected)
			}
		})
	}
}

func TestInputMethodDefault(t *testing.T) {
	id := Identity{Package: "keyspeakd", Class: "KeyspeakEngine"}

	tests := []struct {
		name     string
		def      string
		present  bool
		expected bool
	}{
		{"default", "keyspeakd/KeyspeakEngine", true, true},
		{"other default", "anthy/Anthy", true, false},
		{"absent", "", false, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			values := map[string]string{}
			if test.present {
				values[KeyDefaultInputMethod] = test.def
			}
			if got := InputMethodDefault(NewStatic(values), id); got != test.expected {
				t.Errorf("InputMethodDefault = %v, want %v", got, test.expected)
			}
		})
	}
}

func TestIdentityID(t *testing.T) {
	id := Identity{Package: "keyspeakd", Class: "KeyspeakEngine"}
	if got := id.ID(); got != "keyspeakd/KeyspeakEngine" {
		t.Errorf("ID() = %q", got)
	}
}
