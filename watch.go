package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type reingester interface {
	Reingest(ctx context.Context) error
}

// Watcher re-ingests the source document whenever it is rewritten. Bursts of
// events are merged into one run after mergeEventsDelay of quiet.
type Watcher struct {
	log              *slog.Logger
	path             string
	mergeEventsDelay time.Duration
	ingestor         reingester
}

func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	path, err := filepath.Abs(w.path)
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to resolve %s: %w", w.path, err)
	}

	// editors replace files on save, so the directory is watched instead
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	go w.loop(ctx, watcher, path)
	return nil
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	defer watcher.Close()

	timer := time.NewTimer(w.mergeEventsDelay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case e, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != path || e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			timer.Reset(w.mergeEventsDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			w.log.Info("source document changed, re-ingesting", slog.String("path", path))
			err := w.ingestor.Reingest(ctx)
			if err != nil {
				w.log.Error("failed to re-ingest document", slog.String("error", err.Error()))
			}
		}
	}
}
