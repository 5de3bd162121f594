package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// File is a Provider backed by a TOML file of flat key-value pairs.
// A missing file behaves as an empty store. With Watch the provider
// reloads on file changes, so long-lived processes observe settings
// edits without restarting.
type File struct {
	path     string
	mu       sync.RWMutex
	values   map[string]any
	watcher  *fsnotify.Watcher
	onChange []func()
	ctx      context.Context
	cancel   context.CancelFunc
	errChan  chan error
}

// NewFile creates a file-backed provider. Call Load to read the file
// and Watch to follow changes.
func NewFile(path string) *File {
	ctx, cancel := context.WithCancel(context.Background())
	return &File{
		path:    path,
		values:  make(map[string]any),
		errChan: make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Load reads the settings file. A missing file loads as empty.
func (f *File) Load() error {
	values, err := readSettingsFile(f.path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.values = values
	f.mu.Unlock()
	return nil
}

// readSettingsFile parses the file into a flat value map.
func readSettingsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]any), nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	values := make(map[string]any)
	if err := toml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return values, nil
}

// String implements Provider. Only string-typed values are returned.
func (f *File) String(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.values[key].(string)
	return v, ok
}

// Int implements Provider. Integer values are returned directly;
// string values are parsed.
func (f *File) Int(key string) (int, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	switch v := f.values[key].(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Watch starts watching the settings file for changes. Reloads are
// debounced; registered OnChange callbacks run after each reload.
func (f *File) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	f.watcher = watcher

	// Watch the directory containing the settings file, so editors
	// that replace the file are still observed
	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go f.watchLoop()

	return nil
}

// watchLoop handles file system events.
func (f *File) watchLoop() {
	var debounceTimer *time.Timer
	debounceDelay := 100 * time.Millisecond

	for {
		select {
		case <-f.ctx.Done():
			return

		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(f.path) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				f.reload()
			})

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			select {
			case f.errChan <- err:
			default:
			}
		}
	}
}

// reload re-reads the settings file and notifies listeners.
func (f *File) reload() {
	values, err := readSettingsFile(f.path)
	if err != nil {
		select {
		case f.errChan <- fmt.Errorf("reload settings: %w", err):
		default:
		}
		return
	}

	f.mu.Lock()
	f.values = values
	f.mu.Unlock()

	for _, cb := range f.onChange {
		cb()
	}
}

// OnChange registers a callback invoked after each successful reload.
// Register callbacks before calling Watch.
func (f *File) OnChange(cb func()) {
	f.onChange = append(f.onChange, cb)
}

// Errors returns a channel for errors that occur during watching.
func (f *File) Errors() <-chan error {
	return f.errChan
}

// Close stops the watcher and releases resources.
func (f *File) Close() error {
	f.cancel()
	if f.watcher != nil {
		return f.watcher.Close()
	}
	return nil
}
