// Package watcher reloads the cache when shard files in the data directory change.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
)

const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc is called once per burst of changes.
type ReloadFunc func(ctx context.Context) error

// DataWatcher watches the data directory for shard and exam file changes.
type DataWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dir      string
	reload   ReloadFunc
	debounce time.Duration

	pending   bool
	lastEvent time.Time
	reloads   int

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

func NewDataWatcher(dir string, reload ReloadFunc) (*DataWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &DataWatcher{
		watcher:  w,
		dir:      dir,
		reload:   reload,
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SetDebounce changes the quiet period; call before Start.
func (dw *DataWatcher) SetDebounce(d time.Duration) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.debounce = d
}

// Start begins watching. It does not block.
func (dw *DataWatcher) Start(ctx context.Context) error {
	dw.mu.Lock()
	if dw.running {
		dw.mu.Unlock()
		return nil
	}
	dw.running = true
	dw.mu.Unlock()

	if err := dw.watcher.Add(dw.dir); err != nil {
		dw.mu.Lock()
		dw.running = false
		dw.mu.Unlock()
		return err
	}
	logger.Info().Str("dir", dw.dir).Msg("watching data directory")

	go dw.run(ctx)
	return nil
}

// Stop ends the event loop and releases the underlying watcher.
func (dw *DataWatcher) Stop() {
	dw.mu.Lock()
	if !dw.running {
		dw.mu.Unlock()
		return
	}
	dw.running = false
	dw.mu.Unlock()

	close(dw.stopCh)
	<-dw.doneCh

	if err := dw.watcher.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close data watcher")
	}
}

// Reloads reports how many reloads have been triggered.
func (dw *DataWatcher) Reloads() int {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.reloads
}

func (dw *DataWatcher) run(ctx context.Context) {
	defer close(dw.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-dw.stopCh:
			return
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			dw.handleEvent(event)
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			logger.Error().Err(err).Msg("data watcher error")
		case <-ticker.C:
			dw.flush(ctx)
		}
	}
}

func (dw *DataWatcher) handleEvent(event fsnotify.Event) {
	if !IsDataFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	logger.Debug().Str("file", filepath.Base(event.Name)).Str("op", event.Op.String()).Msg("data file changed")

	dw.mu.Lock()
	dw.pending = true
	dw.lastEvent = time.Now()
	dw.mu.Unlock()
}

func (dw *DataWatcher) flush(ctx context.Context) {
	dw.mu.Lock()
	if !dw.pending || time.Since(dw.lastEvent) < dw.debounce {
		dw.mu.Unlock()
		return
	}
	dw.pending = false
	dw.reloads++
	dw.mu.Unlock()

	logger.Info().Msg("data files changed, reloading cache")
	if err := dw.reload(ctx); err != nil {
		logger.Error().Err(err).Msg("reload after data change failed")
	}
}

// IsDataFile reports whether a change to path should reload the cache. The
// override ledger is excluded because it is only written through the store.
func IsDataFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	return datastore.IsShardFile(name) || lower == "exams.json" || lower == "colleges.json"
}
