package web

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 150 * time.Millisecond

// eventLogWatcher broadcasts on hub whenever the event log file is written,
// so mutations made by other processes (the CLI, another server) reach open
// streams. Bursts of writes are folded into one broadcast.
type eventLogWatcher struct {
	dir  string
	file string
	hub  *resourceHub
	log  *zap.Logger
}

func newEventLogWatcher(path string, hub *resourceHub, log *zap.Logger) *eventLogWatcher {
	return &eventLogWatcher{
		dir:  filepath.Dir(path),
		file: filepath.Base(path),
		hub:  hub,
		log:  log,
	}
}

// run blocks until ctx is done.
func (w *eventLogWatcher) run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(w.dir); err != nil {
		return err
	}
	w.log.Debug("watching event log", zap.String("dir", w.dir))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != w.file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending == nil {
				pending = time.After(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("event log watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			w.hub.broadcast()
		}
	}
}
