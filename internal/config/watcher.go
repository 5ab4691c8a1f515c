package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce coalesces the burst of events an editor produces on save.
const debounce = 500 * time.Millisecond

// Watcher watches for configuration changes.
type Watcher struct {
	path     string
	log      *slog.Logger
	onReload func(*Config, error)
	fsw      *fsnotify.Watcher
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once

	current *Config
	mu      sync.RWMutex
	reloads atomic.Uint32
}

// NewWatcher loads the config at path and reloads it whenever the file changes.
// onReload receives the new config, or the error that kept the previous one in place.
func NewWatcher(path string, log *slog.Logger, onReload func(*Config, error)) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}

	cfg, err := LoadAndValidate(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Editors often replace the file, so the directory is watched and events filtered by name.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		log:      log.With("component", "config_watcher"),
		onReload: onReload,
		fsw:      fsw,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		current:  cfg,
	}

	go w.watch()

	return w, nil
}

// watch watches for configuration changes.
func (w *Watcher) watch() {
	defer close(w.stopped)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.log.Error("Watcher error", "error", err)
		}
	}
}

// reload reloads the config file.
func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	count := w.reloads.Add(1)
	w.log.Info("Reloading config file", "path", w.path, "count", count)

	cfg, err := LoadAndValidate(w.path)
	if err != nil {
		w.log.Error("Failed to reload config", "error", err)
		if w.onReload != nil {
			w.onReload(nil, err)
		}
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	w.log.Info("Config reloaded successfully", "count", count)
	if w.onReload != nil {
		w.onReload(cfg, nil)
	}
}

// Snapshot returns the current config snapshot (thread-safe).
func (w *Watcher) Snapshot() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.current
}

// ReloadCount returns the number of times the config has been reloaded.
func (w *Watcher) ReloadCount() uint32 {
	return w.reloads.Load()
}

// Close stops watching. Pending debounced reloads are dropped.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		<-w.stopped
	})

	return err
}
