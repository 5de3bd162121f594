package announce

// Phrases holds the spoken phrases for functional and modifier key
// releases. Deployments may override individual phrases through
// configuration, for localization or different speech engines.
type Phrases struct {
	ShiftOn     string `toml:"shift_on" json:"shift_on" yaml:"shift_on"`
	ShiftOff    string `toml:"shift_off" json:"shift_off" yaml:"shift_off"`
	ShiftLocked string `toml:"shift_locked" json:"shift_locked" yaml:"shift_locked"`
	AltOn       string `toml:"alt_on" json:"alt_on" yaml:"alt_on"`
	AltOff      string `toml:"alt_off" json:"alt_off" yaml:"alt_off"`
	AltLocked   string `toml:"alt_locked" json:"alt_locked" yaml:"alt_locked"`
	SymbolsOn   string `toml:"symbols_on" json:"symbols_on" yaml:"symbols_on"`
	SymbolsOff  string `toml:"symbols_off" json:"symbols_off" yaml:"symbols_off"`
	Back        string `toml:"back" json:"back" yaml:"back"`
	Home        string `toml:"home" json:"home" yaml:"home"`
	Search      string `toml:"search" json:"search" yaml:"search"`
	Menu        string `toml:"menu" json:"menu" yaml:"menu"`
	Call        string `toml:"call" json:"call" yaml:"call"`
}

// DefaultPhrases returns the bundled phrase set.
func DefaultPhrases() Phrases {
	return Phrases{
		ShiftOn:     "Shift on",
		ShiftOff:    "Shift off",
		ShiftLocked: "Shift locked",
		AltOn:       "Alt on",
		AltOff:      "Alt off",
		AltLocked:   "Alt locked",
		SymbolsOn:   "Symbols on",
		SymbolsOff:  "Symbols off",
		Back:        "Back",
		Home:        "Home",
		Search:      "Search",
		Menu:        "Menu",
		Call:        "Call",
	}
}

// Merge overlays non-empty phrases from other onto p and returns the
// result.
func (p Phrases) Merge(other Phrases) Phrases {
	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	merge(&p.ShiftOn, other.ShiftOn)
	merge(&p.ShiftOff, other.ShiftOff)
	merge(&p.ShiftLocked, other.ShiftLocked)
	merge(&p.AltOn, other.AltOn)
	merge(&p.AltOff, other.AltOff)
	merge(&p.AltLocked, other.AltLocked)
	merge(&p.SymbolsOn, other.SymbolsOn)
	merge(&p.SymbolsOff, other.SymbolsOff)
	merge(&p.Back, other.Back)
	merge(&p.Home, other.Home)
	merge(&p.Search, other.Search)
	merge(&p.Menu, other.Menu)
	merge(&p.Call, other.Call)
	return p
}
