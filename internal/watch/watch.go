// Package watch reruns work when a file changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// File calls fn each time path is written or replaced, until ctx is done.
// Events are debounced. The parent directory is watched so that editors
// that save through a rename are seen. An error from fn stops the watch and
// is returned.
func File(ctx context.Context, path string, debounce time.Duration, fn func(context.Context) error, logger *log.Logger) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = log.Default()
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.Info("watching word list", "file", target)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("word list changed", "file", event.Name, "event", event.Op)
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "dir", dir, "err", err)

		case <-timer.C:
			if err := fn(ctx); err != nil {
				return err
			}
		}
	}
}
