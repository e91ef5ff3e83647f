package file

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange after project files are created, rewritten or
// removed by anyone, including this process. Bursts within delay collapse
// into one call. Watch blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, delay time.Duration, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}
	s.logger.Info("watching for external changes")

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			s.logger.Debug("file changed", "file", filepath.Base(event.Name), "op", event.Op.String())
			if timer == nil {
				timer = time.AfterFunc(delay, onChange)
			} else {
				timer.Reset(delay)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if !strings.HasSuffix(base, ext) || strings.HasPrefix(base, ".") {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
