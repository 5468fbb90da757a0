package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault collapses editor write bursts (tmp+rename, multiple
// WRITE events) into one reload.
const debounceDefault = 200 * time.Millisecond

// FileWatcher invokes a handler when a watched file changes on disk.
// Used to pick up external edits to the trust list or the config file
// while the server is running.
type FileWatcher struct {
	path     string
	handler  func()
	debounce time.Duration
}

// NewFileWatcher creates a watcher for a single file.
func NewFileWatcher(path string, handler func()) *FileWatcher {
	return &FileWatcher{
		path:     path,
		handler:  handler,
		debounce: debounceDefault,
	}
}

// Run watches until ctx is cancelled. The parent directory is watched
// rather than the file itself: atomic writers replace the file via
// rename, which would drop a direct watch.
func (w *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	// Single debounce timer, reset on each event. Initialized as
	// stopped; the first event starts it.
	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()
	defer debounceTimer.Stop()

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounceTimer.C:
			w.handler()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			_ = err
		}
	}
}
