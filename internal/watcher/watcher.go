// Package watcher watches the workspace's configuration file for changes
// and debounces them into a single reload signal.
package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dj1mm/vhdlls/internal/logger"
)

const debounceDelay = 500 * time.Millisecond

// ConfigWatcher watches one file for writes/creates/removes and invokes
// onChange after a debounce window, coalescing a burst of edits (e.g. an
// editor's save-via-rename) into a single reload.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func()
	log      logger.Logger

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	stop chan struct{}
}

// New starts watching configPath's parent directory (fsnotify watches
// directories, not individual files that may not exist yet) and invokes
// onChange whenever configPath itself is written, created, or removed.
func New(configPath string, onChange func(), log logger.Logger) (*ConfigWatcher, error) {
	if log == nil {
		log = &logger.NullLogger{}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(configPath)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	cw := &ConfigWatcher{
		watcher:  w,
		path:     filepath.Clean(configPath),
		onChange: onChange,
		log:      log,
		stop:     make(chan struct{}),
	}
	go cw.watch()
	return cw, nil
}

func (cw *ConfigWatcher) watch() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				cw.debounce()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log.Info("config watcher error: %v", err)
		case <-cw.stop:
			return
		}
	}
}

func (cw *ConfigWatcher) debounce() {
	cw.debounceMu.Lock()
	defer cw.debounceMu.Unlock()

	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	cw.debounceTimer = time.AfterFunc(debounceDelay, cw.onChange)
}

// Stop tears down the underlying fsnotify watcher.
func (cw *ConfigWatcher) Stop() {
	close(cw.stop)
	cw.watcher.Close()
}
