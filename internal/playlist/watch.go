package playlist

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"tracktap/internal/logging"
)

// DefaultDebounce coalesces bursts of filesystem events into one change.
const DefaultDebounce = 250 * time.Millisecond

// Watch invokes onChange whenever a playlist document under the catalog is
// created, written, renamed, or removed. It blocks until ctx is cancelled.
func (c *Catalog) Watch(ctx context.Context, logger *slog.Logger, onChange func()) error {
	if onChange == nil {
		return nil
	}
	logger = logging.NewComponentLogger(logger, "playlist-watch")
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("ensure playlist catalog: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(c.dir); err != nil {
		return fmt.Errorf("watch %s: %w", c.dir, err)
	}
	entries, _ := os.ReadDir(c.dir)
	for _, entry := range entries {
		if entry.IsDir() {
			_ = watcher.Add(filepath.Join(c.dir, entry.Name()))
		}
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if !relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(DefaultDebounce)
			} else {
				timer.Reset(DefaultDebounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("playlist watcher error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "playlist_watch_error"),
				logging.String(logging.FieldErrorHint, "catalog changes may not be picked up until restart"),
			)
		case <-fire:
			fire = nil
			logger.Debug("playlist catalog changed")
			onChange()
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return true
	}
	return event.Op&(fsnotify.Remove|fsnotify.Rename) != 0
}
