// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the result of re-reading a watched config file.
// cfg is nil when err is set.
type ReloadFunc func(cfg *Config, err error)

// Watch re-reads the config file at path whenever it changes and reports the
// result to fn until ctx is cancelled. The parent directory is watched rather
// than the file so editors that save via rename are still picked up.
func Watch(ctx context.Context, path string, fn ReloadFunc) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != absPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadFromPath(absPath)
				fn(cfg, err)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fn(nil, fmt.Errorf("config watcher: %w", err))
			}
		}
	}()
	return nil
}
