package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the burst of events an editor save produces.
const DefaultWatchDebounce = 200 * time.Millisecond

// WatchDefinitions redefines the workflows at path whenever one of its YAML
// files is written, created, renamed or removed. It returns once the watch is
// registered; reloading runs until ctx is done and the returned channel is
// closed when it stops. Reload failures are logged and the previous
// definitions stay in place.
func (a *App) WatchDefinitions(ctx context.Context, path string, debounce time.Duration) (<-chan struct{}, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	dir, target := path, ""
	if !info.IsDir() {
		// Watch the parent so atomic saves (write to temp, rename) are seen.
		dir, target = filepath.Dir(path), filepath.Clean(path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()
		a.watchLoop(ctx, watcher, path, target, debounce)
	}()

	a.Logger.Info("Watching workflow definitions", "path", path)
	return done, nil
}

func (a *App) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path, target string, debounce time.Duration) {
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isDefinitionChange(event, target) {
				continue
			}
			a.Logger.Debug("Definition file changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			a.Logger.Warn("Watcher error", "path", path, "err", err)

		case <-timer.C:
			if _, err := a.LoadWorkflows(ctx, path); err != nil {
				a.Logger.Error("Reload failed, keeping previous definitions", "path", path, "err", err)
				continue
			}
			a.Logger.Info("Workflow definitions reloaded", "path", path)
		}
	}
}

func isDefinitionChange(event fsnotify.Event, target string) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	if target != "" {
		return filepath.Clean(event.Name) == target
	}
	switch strings.ToLower(filepath.Ext(event.Name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
