package tenantcfg

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 500 * time.Millisecond

// Watch reloads the store whenever a file below the config directory changes.
// Rapid bursts of events collapse into one reload. It returns once the
// watcher is installed; the loop stops when ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.loader.Dir, 0o755); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Add(s.loader.Dir); err != nil {
		_ = w.Close()
		return err
	}
	// fsnotify is not recursive: watch each tenant directory too.
	entries, _ := os.ReadDir(s.loader.Dir)
	for _, e := range entries {
		if e.IsDir() {
			_ = w.Add(filepath.Join(s.loader.Dir, e.Name()))
		}
	}

	go s.watchLoop(ctx, w)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		_ = w.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					_ = w.Add(event.Name)
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, func() {
				_, _ = s.Reload()
			})

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.log.Error("tenant config watcher error", "error", err)
		}
	}
}
