package config

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	ilog "github.com/pleimann/camel-keys/internal/log"
)

// Watcher watches a config file for changes and reloads it. A file that
// fails to load is logged and the last good config is kept.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	mu       sync.RWMutex
	config   *Config
	handlers []func(*Config)
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a new config file watcher
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Load initial config
	cfg, err := Load(path)
	if err != nil {
		w.Close()
		return nil, err
	}

	cw := &Watcher{
		path:    filepath.Clean(path),
		watcher: w,
		logger:  ilog.Nop(logger).With("component", "config"),
		config:  cfg,
		done:    make(chan struct{}),
	}

	// Watch the directory: editors that save by rename replace the file
	// and would drop a watch on the file itself.
	if err := w.Add(filepath.Dir(cw.path)); err != nil {
		w.Close()
		return nil, err
	}

	return cw, nil
}

// Start starts watching for config file changes
func (w *Watcher) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.watch()
	}()
}

// Stop stops the config watcher and waits for the watch loop to exit
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
	w.wg.Wait()
}

// OnReload registers a handler to be called when config is reloaded
func (w *Watcher) OnReload(handler func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Get returns the current config
func (w *Watcher) Get() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Path returns the watched file.
func (w *Watcher) Path() string { return w.path }

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			// Reload on write or create (some editors do atomic saves via rename)
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("failed to reload config, keeping previous", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	w.config = cfg
	handlers := make([]func(*Config), len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.path)

	// Notify handlers
	for _, handler := range handlers {
		handler(cfg)
	}
}
