package reference

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path into p whenever the file changes, until ctx is
// cancelled. The parent directory is watched so that saves which rename a
// temp file over path are seen. A reload that fails to parse or validate is
// logged and the previous dataset stays in place.
func Watch(ctx context.Context, path string, p *Provider, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch reference data: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch reference data: %w", err)
	}

	logger.Info("reference: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			ds, err := Load(path)
			if err != nil {
				logger.Error("reference: reload failed, keeping previous dataset", "path", path, "error", err)
				continue
			}
			p.Swap(ds)
			logger.Info("reference: reloaded", "path", path, "zips", len(ds.ZIPs))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("reference: watcher error", "error", err)
		}
	}
}
