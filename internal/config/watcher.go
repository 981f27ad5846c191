// internal/config/watcher.go
package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/valpere/BrandLocator/internal/utils"
)

// FileWatcher calls its callbacks when a single file is written or replaced.
// Editors that save through a temp file and rename are handled by watching
// the parent directory. Bursts of events within the debounce window collapse
// into one callback.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	path      string
	debounce  time.Duration
	logger    utils.Logger
	callbacks []func()
	mu        sync.RWMutex
	stopped   bool
	done      chan struct{}
}

// NewFileWatcher starts watching path.
func NewFileWatcher(path string, logger utils.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:  watcher,
		path:     abs,
		debounce: 100 * time.Millisecond,
		logger:   logger.WithField("path", abs),
		done:     make(chan struct{}),
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go fw.watch()

	return fw, nil
}

// OnChange registers a callback to be called when the file changes
func (fw *FileWatcher) OnChange(callback func()) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.callbacks = append(fw.callbacks, callback)
}

func (fw *FileWatcher) watch() {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(fw.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			fw.notify()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warnf("file watcher error: %v", err)

		case <-fw.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (fw *FileWatcher) notify() {
	fw.mu.RLock()
	if fw.stopped {
		fw.mu.RUnlock()
		return
	}
	callbacks := make([]func(), len(fw.callbacks))
	copy(callbacks, fw.callbacks)
	fw.mu.RUnlock()

	fw.logger.Debug("watched file changed")
	for _, callback := range callbacks {
		callback()
	}
}

// Close stops the watcher and releases resources
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	fw.mu.Unlock()

	close(fw.done)
	return fw.watcher.Close()
}

// ConfigWatcher reloads the configuration file when it changes.
type ConfigWatcher struct {
	*FileWatcher
	configPath string
}

// NewConfigWatcher creates a new configuration file watcher
func NewConfigWatcher(configPath string, logger utils.Logger) (*ConfigWatcher, error) {
	fw, err := NewFileWatcher(configPath, logger)
	if err != nil {
		return nil, err
	}
	return &ConfigWatcher{FileWatcher: fw, configPath: configPath}, nil
}

// OnConfigChange registers a callback receiving the reloaded configuration.
// Invalid edits are logged and the callback is not invoked.
func (cw *ConfigWatcher) OnConfigChange(callback func(*Config)) {
	cw.OnChange(func() {
		cfg, err := LoadFromFile(cw.configPath)
		if err != nil {
			cw.logger.Errorf("failed to reload config: %v", err)
			return
		}
		callback(cfg)
	})
}
