// Package keydesc holds the key description table used to announce
// keyboard keys through a screen reader.
//
// The table maps key codes to spoken descriptions. A separate forced
// set marks codes whose table description must win even when the key
// carries its own literal label (keys whose printed label is wrong to
// speak, like the symbols key showing "?123").
//
// Tables are immutable once built, so they are safe to share across
// goroutines without locking.
package keydesc

import (
	"sort"

	"keyspeakd/internal/keys"
)

// Table is an immutable key code to description mapping plus the set
// of codes whose description overrides the key label.
type Table struct {
	text   map[int]string
	forced map[int]bool
}

// New builds a Table from a flat resource list alternating key code and
// description text, consumed pairwise. Later pairs win on duplicate
// codes. A trailing unpaired element is dropped. Pairs whose code half
// is not an integer or whose text half is not a string are skipped.
//
// The symbols key is always added to the forced set; extra forced codes
// come from the resource. A forced code with no table entry stays inert.
func New(entries []any, forced []int) *Table {
	t := &Table{
		text:   make(map[int]string, len(entries)/2),
		forced: make(map[int]bool, len(forced)+1),
	}

	for i := 0; i+1 < len(entries); i += 2 {
		code, ok := asCode(entries[i])
		if !ok {
			continue
		}
		text, ok := entries[i+1].(string)
		if !ok {
			continue
		}
		t.text[code] = text
	}

	t.forced[keys.CodeModeChange] = true
	for _, code := range forced {
		t.forced[code] = true
	}

	return t
}

// asCode extracts an integer key code from a decoded resource value.
// TOML integers arrive as int64, JSON numbers as float64.
func asCode(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// WithForced derives a table with extra forced codes. The receiver is
// unchanged; the description map is shared.
func (t *Table) WithForced(codes ...int) *Table {
	if len(codes) == 0 {
		return t
	}
	derived := &Table{
		text:   t.text,
		forced: make(map[int]bool, len(t.forced)+len(codes)),
	}
	for code := range t.forced {
		derived.forced[code] = true
	}
	for _, code := range codes {
		derived.forced[code] = true
	}
	return derived
}

// Describe returns the description for a key code.
func (t *Table) Describe(code int) (string, bool) {
	text, ok := t.text[code]
	return text, ok
}

// Has reports whether the table has a description for the code.
func (t *Table) Has(code int) bool {
	_, ok := t.text[code]
	return ok
}

// Forced reports whether the code's table description overrides the key
// label. A forced code without a table entry reports false.
func (t *Table) Forced(code int) bool {
	return t.forced[code] && t.Has(code)
}

// Len returns the number of described codes.
func (t *Table) Len() int {
	return len(t.text)
}

// Codes returns all described key codes in ascending order.
func (t *Table) Codes() []int {
	codes := make([]int, 0, len(t.text))
	for code := range t.text {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}
