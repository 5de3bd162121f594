// Package keys defines the key codes and key events shared by the
// announcer and the platform input method front-ends.
//
// Printable keys carry their Unicode code point as the code. Functional
// keys on a software keyboard use negative virtual codes so they can
// never collide with a code point.
package keys

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Virtual key codes for functional keys.
const (
	CodeShift      = -1
	CodeModeChange = -2
	CodeCancel     = -3
	CodeDone       = -4
	CodeDelete     = -5
	CodeAlt        = -6
)

// Virtual key codes for the navigation row.
const (
	CodeEndCall = -94
	CodeCall    = -95
	CodeBack    = -96
	CodeHome    = -97
	CodeSearch  = -98
	CodeMenu    = -99
)

// Common printable codes with dedicated descriptions.
const (
	CodeTab   = 9
	CodeEnter = 10
	CodeSpace = 32
)

// Key represents a single key event from a keyboard view or input
// method. Code is the primary key code; Label is the literal text
// printed on the key, when the view layer supplies one.
type Key struct {
	Code  int
	Label string
}

// codeNames maps virtual and whitespace codes to log-friendly names.
var codeNames = map[int]string{
	CodeShift:      "SHIFT",
	CodeModeChange: "MODE_CHANGE",
	CodeCancel:     "CANCEL",
	CodeDone:       "DONE",
	CodeDelete:     "DELETE",
	CodeAlt:        "ALT",
	CodeEndCall:    "ENDCALL",
	CodeCall:       "CALL",
	CodeBack:       "BACK",
	CodeHome:       "HOME",
	CodeSearch:     "SEARCH",
	CodeMenu:       "MENU",
	CodeTab:        "TAB",
	CodeEnter:      "ENTER",
	CodeSpace:      "SPACE",
}

// CodeName returns a readable name for a key code, for logs and
// tooling. Printable codes render as their character; anything else
// falls back to "UNKNOWN".
func CodeName(code int) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	if Printable(code) {
		return fmt.Sprintf("%q", rune(code))
	}
	return "UNKNOWN"
}

// Printable reports whether a code is a defined, visible character.
// Control characters, surrogates, and virtual codes are not printable.
func Printable(code int) bool {
	if code <= 0 || code > unicode.MaxRune {
		return false
	}
	r := rune(code)
	if !utf8.ValidRune(r) {
		return false
	}
	return unicode.IsGraphic(r)
}
