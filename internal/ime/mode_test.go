package ime

import "testing"

func TestNewModeStateDefaults(t *testing.T) {
	m := NewModeState()

	if !m.AlphabetMode() {
		t.Error("expected alphabet layout by default")
	}
	if m.ShiftedOrLocked() {
		t.Error("expected shift released by default")
	}
	if m.ShiftLocked() {
		t.Error("expected caps lock off by default")
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name            string
		shifted, locked bool
		wantShiftedOr   bool
		wantLocked      bool
	}{
		{"neither", false, false, false, false},
		{"shifted only", true, false, true, false},
		{"locked only", false, true, true, true},
		{"both", true, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModeState()
			m.Apply(tt.shifted, tt.locked)

			if got := m.ShiftedOrLocked(); got != tt.wantShiftedOr {
				t.Errorf("ShiftedOrLocked() = %v, want %v", got, tt.wantShiftedOr)
			}
			if got := m.ShiftLocked(); got != tt.wantLocked {
				t.Errorf("ShiftLocked() = %v, want %v", got, tt.wantLocked)
			}
		})
	}
}

func TestApplyOverwritesPreviousView(t *testing.T) {
	m := NewModeState()

	m.Apply(true, true)
	m.Apply(false, false)

	if m.ShiftedOrLocked() {
		t.Error("second Apply should clear the shift view")
	}
}

func TestToggleSymbols(t *testing.T) {
	m := NewModeState()

	m.ToggleSymbols()
	if m.AlphabetMode() {
		t.Error("expected symbols layout after toggle")
	}

	m.ToggleSymbols()
	if !m.AlphabetMode() {
		t.Error("expected alphabet layout after second toggle")
	}
}

func TestToggleSymbolsKeepsShiftView(t *testing.T) {
	m := NewModeState()
	m.Apply(true, false)

	m.ToggleSymbols()

	if !m.ShiftedOrLocked() {
		t.Error("layout toggle should not touch the shift view")
	}
}

func TestReset(t *testing.T) {
	m := NewModeState()
	m.ToggleSymbols()
	m.Apply(true, true)

	m.Reset()

	if !m.AlphabetMode() {
		t.Error("expected alphabet layout after reset")
	}
	if m.ShiftedOrLocked() {
		t.Error("expected shift released after reset")
	}
	if m.ShiftLocked() {
		t.Error("expected caps lock off after reset")
	}
}

func TestSnapshot(t *testing.T) {
	m := NewModeState()
	m.ToggleSymbols()
	m.Apply(false, true)

	alphabet, shifted, locked := m.Snapshot()
	if alphabet {
		t.Error("expected symbols layout in snapshot")
	}
	if shifted {
		t.Error("expected shifted false in snapshot")
	}
	if !locked {
		t.Error("expected locked true in snapshot")
	}
}
