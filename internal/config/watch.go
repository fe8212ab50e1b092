package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch monitors path for changes and calls onChange with the newly loaded
// File each time it is written. It runs until ctx is cancelled.
//
// A reload that fails is logged and the previous configuration stays active;
// onChange is not called.
func Watch(ctx context.Context, path string, log *zap.Logger, onChange func(*File)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	log.Info("config_watching", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// editors often save via rename, which shows up as Create
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			f, err := Load(path)
			if err != nil {
				log.Error("config_reload_failed", zap.String("path", path), zap.Error(err))
				continue
			}
			log.Info("config_reloaded", zap.String("path", path), zap.Int("checks", len(f.Checks)))
			onChange(f)

			// the inode may have been replaced
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("config_watch_error", zap.Error(err))
		}
	}
}
