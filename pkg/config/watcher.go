package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bastiangx/placeserve/internal/logger"
	"github.com/bastiangx/placeserve/pkg/debounce"
	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay collapses the burst of events a single save produces.
const DefaultReloadDelay = 250 * time.Millisecond

// ReloadCallback receives every successfully reloaded config.
type ReloadCallback func(*Config) error

// Watcher reloads the config file when it changes on disk.
//
// It watches the file's directory rather than the file itself, so editors
// that save by renaming a temp file over the original are still seen.
type Watcher struct {
	configPath string
	watcher    *fsnotify.Watcher
	reloads    *debounce.Debouncer[string]

	mu        sync.RWMutex
	callbacks []ReloadCallback

	log *log.Logger
}

// NewWatcher starts watching configPath. A non-positive delay uses
// DefaultReloadDelay.
func NewWatcher(configPath string, delay time.Duration) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultReloadDelay
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	dir := filepath.Dir(configPath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch config dir %s", dir)
	}

	cw := &Watcher{
		configPath: configPath,
		watcher:    fsw,
		log:        logger.New("config"),
	}
	cw.reloads = debounce.New(delay, cw.reload)
	return cw, nil
}

// OnReload registers a callback to be called when config is reloaded
func (cw *Watcher) OnReload(callback ReloadCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// Run handles file events until ctx is done or the watcher is closed.
func (cw *Watcher) Run(ctx context.Context) error {
	target := filepath.Clean(cw.configPath)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				cw.log.Debug("config change detected", "file", event.Name, "op", event.Op.String())
				cw.reloads.Call(cw.configPath)
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return nil
			}
			cw.log.Warn("config watcher error", "err", err)
		}
	}
}

// Close stops watching and drops any pending reload.
func (cw *Watcher) Close() error {
	cw.reloads.Stop()
	return cw.watcher.Close()
}

func (cw *Watcher) reload(path string) {
	cfg, err := LoadConfig(path)
	if err != nil {
		cw.log.Error("config reload failed", "err", err)
		return
	}
	cw.log.Info("config reloaded", "path", path)

	cw.mu.RLock()
	callbacks := make([]ReloadCallback, len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback(cfg); err != nil {
			cw.log.Warn("config reload callback failed", "err", err)
		}
	}
}
