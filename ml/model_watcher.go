package ml

import (
	"context"
	"fmt"
	"path/filepath"

	"carprice/logging"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ModelWatcher calls OnChange whenever the artifact at Path is created, written,
// renamed or removed. The parent directory is watched because Store.Save replaces the
// file by rename.
type ModelWatcher struct {
	path     string
	onChange func(path string)
	logger   *zap.Logger
}

func NewModelWatcher(path string, onChange func(path string), logger *zap.Logger) *ModelWatcher {
	return &ModelWatcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   logging.OrNop(logger),
	}
}

// Run blocks until ctx is done.
func (w *ModelWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching model artifact", zap.String("path", w.path))

	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Rename | fsnotify.Remove
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || event.Op&relevant == 0 {
				continue
			}
			w.logger.Info("model artifact changed",
				zap.String("path", w.path),
				zap.String("op", event.Op.String()))
			if w.onChange != nil {
				w.onChange(w.path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("model watcher error", zap.Error(err))
		}
	}
}
