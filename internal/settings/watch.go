package settings

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// Watch calls fn whenever the settings file changes in a way that requires
// reloading relative to active. It blocks until ctx is done.
func (s *FileStore) Watch(ctx context.Context, active Snapshot, fn func(Snapshot)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// The file is replaced by rename, so watch the directory.
	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	notified := active
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != settingsFile {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("settings watcher", "err", err)
		case <-timer.C:
			snap, err := Load(s)
			if err != nil {
				slog.Warn("settings reload", "err", err)
				continue
			}
			if !RequiresReload(active.DataSource, snap.DataSource, active.Config, snap.Config) {
				continue
			}
			if !RequiresReload(notified.DataSource, snap.DataSource, notified.Config, snap.Config) {
				continue
			}
			notified = snap
			slog.Info("settings changed on disk", "data_source", snap.DataSource)
			fn(snap)
		}
	}
}
