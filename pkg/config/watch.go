package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDelay debounces bursts of write events from editors.
const reloadDelay = 500 * time.Millisecond

// Watch reloads the file at path whenever it changes and passes each config
// that loads and validates to onChange. Invalid files are logged and skipped.
// It blocks until ctx is done.
func Watch(ctx context.Context, path string, logger zerolog.Logger, onChange func(*Config)) error {
	logger = logger.With().Str("component", "config-watcher").Logger()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	logger.Info().Str("path", abs).Msg("Watching configuration file")

	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Configuration file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				if ctx.Err() != nil {
					return
				}
				cfg, err := Load(abs)
				if err != nil {
					logger.Error().Err(err).Msg("Failed to reload configuration")
					return
				}
				logger.Info().Msg("Configuration reloaded")
				onChange(cfg)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("Watcher error")
		}
	}
}
