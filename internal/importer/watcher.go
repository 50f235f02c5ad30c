package importer

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"fxledger/internal/logger"
)

const watchDebounce = 2 * time.Second

// Watch re-imports whenever the trade log file changes. Events are
// debounced because exporters write the file in several chunks. Blocks
// until ctx is done.
func (im *Importer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: exporters that write-then-rename replace
	// the inode, which silently drops a file-level watch.
	dir := filepath.Dir(im.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(im.path)
	logger.Infof("importer: watching %s", target)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("importer: watcher error: %v", err)
		case <-fire:
			if _, err := im.ImportFile(ctx); err != nil {
				logger.Errorf("importer: watched import failed: %v", err)
			}
		}
	}
}
