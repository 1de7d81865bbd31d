package agent

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yubzen/globetrip/internal/logging"
)

const reloadDebounce = 200 * time.Millisecond

// WatchProfiles reloads path whenever it changes and hands the result to
// onChange. Files that fail to parse are logged and skipped, keeping the last
// good profiles. The watcher stops when ctx is done; the returned channel is
// closed once it has.
func WatchProfiles(ctx context.Context, path string, logger *slog.Logger, onChange func(Profiles)) (<-chan struct{}, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create profile watcher: %w", err)
	}
	// Editors replace files on save, so the directory is watched.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	done := make(chan struct{})
	target := filepath.Base(path)
	go func() {
		defer close(done)
		defer watcher.Close()

		debounce := time.NewTimer(time.Hour)
		debounce.Stop()
		defer debounce.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				debounce.Reset(reloadDebounce)
			case <-debounce.C:
				profiles, err := LoadProfiles(path)
				if err != nil {
					logger.Warn("agent profiles reload failed", "path", path, "error", err)
					continue
				}
				logger.Info("agent profiles reloaded", "path", path, "agents", len(profiles))
				onChange(profiles)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("agent profile watcher error", "error", err)
			}
		}
	}()
	return done, nil
}
