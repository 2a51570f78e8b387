package config

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads avro.compatibility.level from path on file change. It is
// the only config value safe to hot-reload without restarting the log
// tailer or coordinator session: every other key is read once at startup
// and baked into the components it configures.
type Watcher struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	mu    sync.RWMutex
	level string
}

// NewWatcher starts watching path for changes, seeding the current level
// from initial.
func NewWatcher(path string, initial string, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{path: path, logger: logger, watcher: fw, level: strings.ToUpper(initial)}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("config: watch error", "error", err)
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("config: reload failed, keeping previous compatibility level", "error", err)
		}
		return
	}
	level := strings.ToUpper(cfg.Avro.CompatibilityLevel)

	w.mu.Lock()
	changed := level != w.level
	w.level = level
	w.mu.Unlock()

	if changed && w.logger != nil {
		w.logger.Info("config: avro.compatibility.level reloaded", "level", level)
	}
}

// Level returns the most recently loaded default compatibility level.
func (w *Watcher) Level() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.level
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
