//go:build linux

package ime

import (
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"keyspeakd/internal/announce"
	"keyspeakd/internal/keys"
	"keyspeakd/internal/logging"
)

// IBus D-Bus constants
const (
	IBusFactoryInterface = "org.freedesktop.IBus.Factory"
	IBusEngineInterface  = "org.freedesktop.IBus.Engine"

	// BusName is the well-known name the engine claims on the session
	// bus.
	BusName = "com.keyspeakd.IBus"

	// EngineName is the engine name registered with IBus.
	EngineName = "keyspeakd"
)

// IBus key event state masks
const (
	IBusShiftMask   uint32 = 1 << 0
	IBusLockMask    uint32 = 1 << 1
	IBusControlMask uint32 = 1 << 2
	IBusMod1Mask    uint32 = 1 << 3 // Alt
	IBusReleaseMask uint32 = 1 << 30
)

// Engine bridges IBus key events to the announcer. Presses speak the
// key's description, releases speak the modifier and navigation
// phrases, and the mode-change key flips the layout state the shift
// phrases depend on. Every key passes through unconsumed.
type Engine struct {
	conn      *dbus.Conn
	announcer *announce.Announcer
	state     *ModeState
	log       *logging.Logger

	mu         sync.RWMutex
	active     bool
	focused    bool
	enginePath dbus.ObjectPath
	stats      EngineStats
}

// EngineStats tracks engine activity.
type EngineStats struct {
	TotalKeyEvents  uint64
	KeyPresses      uint64
	KeyReleases     uint64
	FocusChanges    uint64
	LastKeyEvent    time.Time
	LastFocusChange time.Time
}

// NewEngine creates an IBus engine backed by the announcer.
func NewEngine(announcer *announce.Announcer, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Default().WithComponent("ibus")
	}
	return &Engine{
		announcer: announcer,
		state:     NewModeState(),
		log:       log,
	}
}

// Mode returns the layout and shift state the engine maintains.
func (e *Engine) Mode() *ModeState {
	return e.state
}

// Start connects to the session bus, claims the engine bus name, and
// exports the factory and engine objects.
func (e *Engine) Start() error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	e.conn = conn

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", BusName)
	}

	factory := &Factory{engine: e}
	if err := conn.Export(factory, "/org/freedesktop/IBus/Factory", IBusFactoryInterface); err != nil {
		return fmt.Errorf("export factory: %w", err)
	}

	e.enginePath = dbus.ObjectPath("/org/freedesktop/IBus/Engine/" + EngineName)
	if err := conn.Export(e, e.enginePath, IBusEngineInterface); err != nil {
		return fmt.Errorf("export engine: %w", err)
	}

	e.log.Info("ibus engine started", "bus_name", BusName, "path", string(e.enginePath))
	return nil
}

// Stop releases the bus connection.
func (e *Engine) Stop() error {
	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}

// Active reports whether IBus has enabled the engine.
func (e *Engine) Active() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

// ProcessKeyEvent handles key press and release events from IBus.
// Always returns false: announcing never consumes the key, the typing
// path wins.
func (e *Engine) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	if !e.Active() {
		return false, nil
	}

	isRelease := state&IBusReleaseMask != 0
	e.recordKeyEvent(isRelease)

	key, ok := keys.FromKeysym(keyval)
	if !ok {
		// No announcement meaning; pass the key through untouched.
		return false, nil
	}

	shifted := state&IBusShiftMask != 0
	locked := state&IBusLockMask != 0
	if isRelease && key.Code == keys.CodeShift {
		// The state mask reports modifiers before the event, so a
		// shift release still carries the shift bit.
		shifted = false
	}
	e.state.Apply(shifted, locked)

	if isRelease {
		e.announcer.OnRelease(key, e.state)
	} else {
		e.announcer.OnPress(key, e.state)
		if key.Code == keys.CodeModeChange {
			e.state.ToggleSymbols()
		}
	}

	return false, nil
}

// recordKeyEvent updates the engine statistics for one key event.
func (e *Engine) recordKeyEvent(isRelease bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.TotalKeyEvents++
	if isRelease {
		e.stats.KeyReleases++
	} else {
		e.stats.KeyPresses++
	}
	e.stats.LastKeyEvent = time.Now()
}

// FocusIn is called when the engine gains input focus.
func (e *Engine) FocusIn() *dbus.Error {
	e.mu.Lock()
	e.focused = true
	e.stats.FocusChanges++
	e.stats.LastFocusChange = time.Now()
	e.mu.Unlock()

	e.log.Debug("focus in")
	return nil
}

// FocusOut is called when the engine loses input focus.
func (e *Engine) FocusOut() *dbus.Error {
	e.mu.Lock()
	e.focused = false
	e.mu.Unlock()

	e.log.Debug("focus out")
	return nil
}

// Enable is called when IBus activates the engine.
func (e *Engine) Enable() *dbus.Error {
	e.mu.Lock()
	e.active = true
	e.mu.Unlock()

	e.log.Info("engine enabled")
	return nil
}

// Disable is called when IBus deactivates the engine. The mode state
// resets so a later activation starts from the alphabet layout.
func (e *Engine) Disable() *dbus.Error {
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()

	e.state.Reset()

	e.log.Info("engine disabled")
	return nil
}

// Reset resets the engine state.
func (e *Engine) Reset() *dbus.Error {
	e.state.Reset()
	e.log.Debug("engine reset")
	return nil
}

// SetCapabilities informs about client capabilities.
func (e *Engine) SetCapabilities(caps uint32) *dbus.Error {
	e.log.Debug("set capabilities", "caps", caps)
	return nil
}

// SetContentType informs about the type of content being edited.
func (e *Engine) SetContentType(purpose, hints uint32) *dbus.Error {
	e.log.Debug("set content type", "purpose", purpose, "hints", hints)
	return nil
}

// SetCursorLocation informs about cursor position.
func (e *Engine) SetCursorLocation(x, y, w, h int32) *dbus.Error {
	return nil
}

// SetSurroundingText provides context around the cursor.
func (e *Engine) SetSurroundingText(text string, cursorPos, anchorPos uint32) *dbus.Error {
	return nil
}

// PropertyActivate handles property activations from the panel.
func (e *Engine) PropertyActivate(propName string, state uint32) *dbus.Error {
	e.log.Debug("property activate", "name", propName, "state", state)
	return nil
}

// PageUp handles page up in a candidate list.
func (e *Engine) PageUp() *dbus.Error {
	return nil
}

// PageDown handles page down in a candidate list.
func (e *Engine) PageDown() *dbus.Error {
	return nil
}

// CursorUp handles cursor up in a candidate list.
func (e *Engine) CursorUp() *dbus.Error {
	return nil
}

// CursorDown handles cursor down in a candidate list.
func (e *Engine) CursorDown() *dbus.Error {
	return nil
}

// CandidateClicked handles candidate selection.
func (e *Engine) CandidateClicked(index, button, state uint32) *dbus.Error {
	return nil
}

// GetStats returns a copy of the engine statistics.
func (e *Engine) GetStats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// Factory implements the IBus Factory D-Bus interface. IBus asks it
// for engine instances by name.
type Factory struct {
	engine   *Engine
	engineID uint32
}

// CreateEngine creates a new engine instance for IBus.
func (f *Factory) CreateEngine(engineName string) (dbus.ObjectPath, *dbus.Error) {
	if engineName != EngineName {
		return "", dbus.NewError("org.freedesktop.IBus.NoEngine",
			[]interface{}{"unknown engine: " + engineName})
	}

	f.engineID++
	path := dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/IBus/Engine/%d", f.engineID))

	f.engine.conn.Export(f.engine, path, IBusEngineInterface)

	f.engine.log.Debug("engine instance created", "path", string(path))
	return path, nil
}
