package keys

// X11 key symbols relevant to announcements. Printable keysyms are
// handled by range in KeysymRune rather than listed here.
const (
	KeysymBackSpace  = 0xff08
	KeysymTab        = 0xff09
	KeysymReturn     = 0xff0d
	KeysymEscape     = 0xff1b
	KeysymMenu       = 0xff67
	KeysymModeSwitch = 0xff7e
	KeysymKPEnter    = 0xff8d
	KeysymShiftL     = 0xffe1
	KeysymShiftR     = 0xffe2
	KeysymCapsLock   = 0xffe5
	KeysymAltL       = 0xffe9
	KeysymAltR       = 0xffea
	KeysymDelete     = 0xffff
)

// XF86 multimedia and navigation key symbols.
const (
	KeysymXF86HomePage = 0x1008ff18
	KeysymXF86Search   = 0x1008ff1b
	KeysymXF86Back     = 0x1008ff26
	KeysymXF86Phone    = 0x1008ff6e
)

// keysymCodes maps functional keysyms to virtual key codes.
var keysymCodes = map[uint32]int{
	KeysymShiftL:       CodeShift,
	KeysymShiftR:       CodeShift,
	KeysymCapsLock:     CodeShift,
	KeysymModeSwitch:   CodeModeChange,
	KeysymEscape:       CodeCancel,
	KeysymBackSpace:    CodeDelete,
	KeysymDelete:       CodeDelete,
	KeysymAltL:         CodeAlt,
	KeysymAltR:         CodeAlt,
	KeysymTab:          CodeTab,
	KeysymReturn:       CodeEnter,
	KeysymKPEnter:      CodeEnter,
	KeysymMenu:         CodeMenu,
	KeysymXF86Back:     CodeBack,
	KeysymXF86HomePage: CodeHome,
	KeysymXF86Search:   CodeSearch,
	KeysymXF86Phone:    CodeCall,
}

// KeysymRune converts an X11 keysym to its Unicode rune, or 0 when the
// keysym does not produce a character.
func KeysymRune(keysym uint32) rune {
	// Direct Unicode mapping for the ASCII range
	if keysym >= 0x20 && keysym <= 0x7e {
		return rune(keysym)
	}

	// Extended Latin (ISO 8859-1)
	if keysym >= 0xa0 && keysym <= 0xff {
		return rune(keysym)
	}

	// Unicode keysyms (0x01000000 + codepoint)
	if keysym >= 0x01000000 {
		return rune(keysym - 0x01000000)
	}

	return 0
}

// FromKeysym maps an X11 keysym to a Key. Functional keysyms become
// virtual codes; printable keysyms carry their code point. Keysyms with
// no announcement meaning return ok=false.
func FromKeysym(keysym uint32) (Key, bool) {
	if code, ok := keysymCodes[keysym]; ok {
		return Key{Code: code}, true
	}
	if r := KeysymRune(keysym); r != 0 {
		return Key{Code: int(r)}, true
	}
	return Key{}, false
}
