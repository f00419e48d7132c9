package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for shard writes to settle.
const DefaultDebounce = 2 * time.Second

// Watch reloads the catalog whenever a shard file in dir matching pattern is
// created, written, renamed or removed. Bursts of events within debounce
// collapse into one reload. It blocks until ctx is done.
func (ix *Indexer) Watch(ctx context.Context, dir, pattern string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid shard pattern %q", pattern)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	ix.logger.Info("watching shards", "dir", dir, "pattern", pattern, "debounce", debounce)

	timer := time.NewTimer(debounce)
	timer.Stop()
	pending := 0

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, pattern) {
				continue
			}
			pending++
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			ix.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			ix.logger.Info("shards changed, reloading", "events", pending)
			pending = 0
			if _, err := ix.Load(ctx); err != nil {
				ix.logger.Error("reload failed", "error", err)
			}
		}
	}
}

// relevant reports whether ev touches a shard file.
func relevant(ev fsnotify.Event, pattern string) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	ok, err := doublestar.Match(filepath.Base(pattern), filepath.Base(ev.Name))
	return err == nil && ok
}
