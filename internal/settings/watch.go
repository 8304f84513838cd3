package settings

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watch calls reload after the settings file at path changes on disk. The
// parent directory is watched as well so editors that replace the file by
// rename are picked up. The watcher stops when ctx is done.
func Watch(ctx context.Context, path string, reload func()) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		w.Close()
		return err
	}
	if err := w.Add(target); err != nil {
		slog.Debug("settings: unable to watch file directly", "path", target, "err", err)
	}

	go func() {
		defer w.Close()
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		for {
			select {
			case <-ctx.Done():
				debounce.Stop()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := w.Add(target); err != nil {
						slog.Debug("settings: watch re-add", "path", target, "err", err)
					}
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(watchDebounce)
				}
			case <-debounce.C:
				reload()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("settings: watch error", "err", err)
			}
		}
	}()
	return nil
}
