// Package ime hosts the IBus input method engine that feeds hardware
// key events to the announcer.
package ime

import "sync"

// ModeState tracks the keyboard layout and shift state consulted when
// phrasing modifier announcements. Safe for concurrent use: IBus
// callbacks arrive on the bus goroutine while the control socket may
// read it from another.
type ModeState struct {
	mu       sync.RWMutex
	alphabet bool
	shifted  bool
	locked   bool
}

// NewModeState returns a state in the alphabet layout, unshifted.
func NewModeState() *ModeState {
	return &ModeState{alphabet: true}
}

// AlphabetMode reports whether the alphabet layout is active.
func (m *ModeState) AlphabetMode() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alphabet
}

// ShiftedOrLocked reports whether shift is held or locked.
func (m *ModeState) ShiftedOrLocked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shifted || m.locked
}

// ShiftLocked reports whether caps lock is engaged.
func (m *ModeState) ShiftLocked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locked
}

// Apply records the modifier view derived from a key event mask.
func (m *ModeState) Apply(shifted, locked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifted = shifted
	m.locked = locked
}

// ToggleSymbols flips between the alphabet and symbols layouts.
func (m *ModeState) ToggleSymbols() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alphabet = !m.alphabet
}

// Reset returns to the alphabet layout with shift released.
func (m *ModeState) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alphabet = true
	m.shifted = false
	m.locked = false
}

// Snapshot returns the current layout and shift view in one read.
func (m *ModeState) Snapshot() (alphabet, shifted, locked bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alphabet, m.shifted, m.locked
}
