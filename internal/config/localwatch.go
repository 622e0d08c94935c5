package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchLocalFile provides a fast path for local/dev use: when the config repo
// is checked out on disk already (RepoURL is a "file://" or absolute path),
// watching the YAML file at path calls onChange on every write or create of
// that file instead of waiting for the next config_timer tick. The daemon's
// onChange is Reloader.Reload, which still compares the ref's commit hash, so a
// saved but uncommitted edit does not change the loaded configuration. It
// complements, rather than replaces, Reloader.Run; any fsnotify error just logs
// and the periodic tick remains the fallback.
func WatchLocalFile(ctx context.Context, path string, onChange func(), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				logger.Debug("local config file changed", "path", path)
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config file watcher error", "error", err)
		}
	}
}
