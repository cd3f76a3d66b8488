// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/AleutianFPL/services/forecast/pipeline"
)

// BuildFunc bootstraps a fresh pipeline from the snapshots.
type BuildFunc func(ctx context.Context) (*pipeline.Pipeline, error)

// Reloader swaps in a new pipeline when the snapshot directory changes.
//
// # Description
//
// Events are debounced: a reload runs once the directory has been quiet
// for the debounce interval, so a fetch writing several snapshots causes
// one reload. A failed build keeps the current generation.
//
// # Thread Safety
//
// Run must be called once. Reload is safe for concurrent use.
type Reloader struct {
	holder   *Holder
	build    BuildFunc
	dir      string
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// NewReloader watches dir.
//
// # Inputs
//
//   - holder: Receives the new generations.
//   - dir: Snapshot directory. Must exist.
//   - build: Builds a pipeline from the current snapshots.
//   - debounce: Quiet period before a reload.
//   - logger: Logger. Nil uses slog.Default().
//
// # Outputs
//
//   - *Reloader: Ready to Run.
//   - error: Non-nil if the directory cannot be watched.
func NewReloader(holder *Holder, dir string, build BuildFunc, debounce time.Duration, logger *slog.Logger) (*Reloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Reloader{
		holder:   holder,
		build:    build,
		dir:      dir,
		debounce: debounce,
		logger:   logger,
		watcher:  watcher,
	}, nil
}

// Run processes events until ctx is done, then closes the watcher.
//
// # Example
//
//	r, _ := api.NewReloader(holder, dir, build, 2*time.Second, logger)
//	go r.Run(ctx)
func (r *Reloader) Run(ctx context.Context) {
	defer r.watcher.Close()

	timer := time.NewTimer(r.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	r.logger.Info("watching snapshots", slog.String("dir", r.dir))
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			r.logger.Debug("snapshot changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			timer.Reset(r.debounce)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("snapshot watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			if err := r.Reload(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("reload failed, keeping current pipeline", slog.String("error", err.Error()))
			}

		case <-ctx.Done():
			r.logger.Debug("snapshot watcher stopping")
			return
		}
	}
}

// Reload builds a pipeline and publishes it.
func (r *Reloader) Reload(ctx context.Context) error {
	start := time.Now()
	p, err := r.build(ctx)
	if err != nil {
		return err
	}
	g := r.holder.Swap(p)
	r.logger.Info("pipeline reloaded",
		slog.Uint64("generation", g.Number),
		slog.Int("next_gameweek", p.Registry().NextGameweek()),
		slog.Duration("took", time.Since(start)))
	return nil
}

// relevant ignores temporary files and attribute changes.
func relevant(event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
