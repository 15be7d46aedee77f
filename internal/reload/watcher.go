// Package reload watches the scene directory for filesystem changes and
// hot-loads the changed file into the running scenemanager.Manager, so a
// scene edited or synced in place takes effect without restarting the
// engine. The fsnotify event-loop and pattern-matching follow the usual
// fsnotify watcher shape, narrowed to one fixed action: load the changed
// scene file.
package reload

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ledengine/ledengine/internal/logger"
	"github.com/ledengine/ledengine/internal/sceneio"
)

// SceneLoader is the slice of scenemanager.Manager this package needs.
type SceneLoader interface {
	LoadScene(path string) (int, error)
}

// Watcher reloads *.json and *.yaml/*.yml scene files in a directory on
// create/write events.
type Watcher struct {
	watcher *fsnotify.Watcher
	sm      SceneLoader
	log     *zap.Logger
}

// New creates a Watcher over dir. Call Run to start consuming events.
func New(dir string, sm SceneLoader) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{watcher: fw, sm: sm, log: logger.Get().Named("reload")}, nil
}

// Run blocks, reloading on qualifying events until ctx is cancelled or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("scene directory watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	ext := filepath.Ext(event.Name)
	if ext != ".json" && !sceneio.LooksLikeYAML(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	sceneID, err := w.sm.LoadScene(event.Name)
	if err != nil {
		w.log.Warn("hot reload failed", zap.String("file", event.Name), zap.Error(err))
		return
	}
	w.log.Info("hot reloaded scene", zap.String("file", event.Name), zap.Int("scene_id", sceneID))
}

// Close stops the underlying fsnotify watcher directly, for callers not
// driving Run via a cancellable context.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
