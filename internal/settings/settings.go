// Package settings provides the platform settings store the announcer
// consults, as an injected capability rather than a global.
//
// Queries never fail: an absent key reads as not-set, and every
// higher-level question (accessibility on, input method enabled)
// degrades to false. This keeps the typing path free of error handling
// for conditions the user cannot act on anyway.
package settings

import (
	"strconv"
	"strings"
)

// Well-known setting keys.
const (
	// KeyAccessibilityEnabled is the integer setting that gates all
	// announcements. Only the exact value 1 counts as enabled.
	KeyAccessibilityEnabled = "accessibility_enabled"

	// KeyEnabledInputMethods is the colon-delimited list of enabled
	// input method identifiers.
	KeyEnabledInputMethods = "enabled_input_methods"

	// KeyDefaultInputMethod is the identifier of the default input
	// method.
	KeyDefaultInputMethod = "default_input_method"
)

// Provider supplies read access to the settings store. Implementations
// return ok=false for absent keys and never return errors.
type Provider interface {
	// String returns the raw string value of a setting.
	String(key string) (string, bool)

	// Int returns the integer value of a setting. A value that does
	// not parse as an integer reads as absent.
	Int(key string) (int, bool)
}

// Identity names an input method by its package and simple class name.
type Identity struct {
	Package string
	Class   string
}

// ID renders the identity in its settings-list form.
func (id Identity) ID() string {
	return id.Package + "/" + id.Class
}

// Static is an immutable in-memory Provider backed by a string map.
type Static map[string]string

// NewStatic copies the given values into a Static provider.
func NewStatic(values map[string]string) Static {
	s := make(Static, len(values))
	for k, v := range values {
		s[k] = v
	}
	return s
}

// String implements Provider.
func (s Static) String(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// Int implements Provider.
func (s Static) Int(key string) (int, bool) {
	v, ok := s[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// AccessibilityEnabled reports whether system-wide accessibility is on.
// True only when the backing integer equals exactly 1; absent or any
// other value is false.
func AccessibilityEnabled(p Provider) bool {
	v, ok := p.Int(KeyAccessibilityEnabled)
	return ok && v == 1
}

// InputMethodEnabled reports whether the given input method appears in
// the enabled list. The check is loose substring containment of the
// package and class names, so an identifier that embeds both strings
// also matches. Absent setting reads as false.
func InputMethodEnabled(p Provider, id Identity) bool {
	enabled, ok := p.String(KeyEnabledInputMethods)
	if !ok {
		return false
	}
	return strings.Contains(enabled, id.Package) && strings.Contains(enabled, id.Class)
}

// InputMethodDefault reports whether the given input method is the
// system default, using the same loose substring containment as
// InputMethodEnabled. Absent setting reads as false.
func InputMethodDefault(p Provider, id Identity) bool {
	def, ok := p.String(KeyDefaultInputMethod)
	if !ok {
		return false
	}
	return strings.Contains(def, id.Package) && strings.Contains(def, id.Class)
}
