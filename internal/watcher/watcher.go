// Package watcher watches the configuration file and triggers hot reloads.
// It supports cross-platform fsnotify event handling, including editors that
// replace the file atomically via rename.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/publidesk/passerelle/internal/config"
)

const configReloadDebounce = 150 * time.Millisecond

// Watcher manages file watching for the gateway configuration file.
type Watcher struct {
	configPath     string
	reloadCallback func(*config.Config)
	watcher        *fsnotify.Watcher

	mu             sync.Mutex
	reloadTimer    *time.Timer
	lastConfigHash string
}

// NewWatcher creates a watcher for the configuration file at configPath. The
// callback runs with the freshly loaded configuration after each material
// change; loads that fail validation keep the previous configuration active.
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		configPath:     configPath,
		reloadCallback: reloadCallback,
		watcher:        fsWatcher,
	}, nil
}

// Start begins watching and blocks until the context is cancelled. The parent
// directory is watched rather than the file itself so that atomic replaces
// (write temp file, rename over the original) keep being observed.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	log.Debugf("watching %s for configuration changes", w.configPath)

	if data, err := os.ReadFile(w.configPath); err == nil {
		w.mu.Lock()
		w.lastConfigHash = hashConfig(data)
		w.mu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("config watcher error")
		}
	}
}

// Stop stops the file watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
		w.reloadTimer = nil
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
	}
	w.reloadTimer = time.AfterFunc(configReloadDebounce, func() {
		w.mu.Lock()
		w.reloadTimer = nil
		w.mu.Unlock()
		w.reloadIfChanged()
	})
}

func (w *Watcher) reloadIfChanged() {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Errorf("failed to read config file for hash check: %v", err)
		return
	}
	if len(data) == 0 {
		log.Debug("ignoring empty config file write event")
		return
	}
	newHash := hashConfig(data)

	w.mu.Lock()
	unchanged := w.lastConfigHash != "" && w.lastConfigHash == newHash
	w.mu.Unlock()
	if unchanged {
		log.Debug("config file content unchanged, skipping reload")
		return
	}

	newConfig, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Errorf("failed to reload config, keeping previous: %v", err)
		return
	}

	w.mu.Lock()
	w.lastConfigHash = newHash
	w.mu.Unlock()

	log.Infof("config file changed, reloading: %s", w.configPath)
	w.reloadCallback(newConfig)
}

func hashConfig(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
