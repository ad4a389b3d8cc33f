package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the config file when it changes and hands the new
// configuration to a callback. Only settings safe to change at runtime
// should be applied by the callback.
type Watcher struct {
	watcher         *fsnotify.Watcher
	path            string
	onChange        func(*Config)
	logger          *zap.Logger
	debounceTimeout time.Duration
	debounceTimer   *time.Timer
	stopChan        chan struct{}
	mu              sync.Mutex
	isWatching      bool
}

// NewWatcher creates a watcher for the config file at path
func NewWatcher(path string, onChange func(*Config), logger *zap.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if onChange == nil {
		return nil, fmt.Errorf("change callback is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher:         watcher,
		path:            filepath.Clean(path),
		onChange:        onChange,
		logger:          logger,
		debounceTimeout: 250 * time.Millisecond,
		stopChan:        make(chan struct{}),
	}, nil
}

// Watch starts watching. The directory is watched so that editors replacing
// the file by rename are seen.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.isWatching {
		w.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	w.isWatching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.isWatching = false
		w.mu.Unlock()
		return fmt.Errorf("failed to add path to watcher: %w", err)
	}

	w.logger.Info("Watching config file", zap.String("path", w.path))
	go w.watchLoop(ctx)
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.isWatching = false
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceTimeout, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("Failed to reload config", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.logger.Info("Config reloaded", zap.String("path", w.path))
	w.onChange(cfg)
}

// SetDebounceTimeout sets the debounce timeout for file changes
func (w *Watcher) SetDebounceTimeout(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounceTimeout = d
}

// Stop stops watching for file changes
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stopChan:
		return nil
	default:
	}
	close(w.stopChan)

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	return w.watcher.Close()
}
