package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the write bursts editors produce when saving.
const watchDebounce = 300 * time.Millisecond

// Watch blocks until ctx is done, invoking onChange every time the matrix
// file at path is written. The callback re-parses and re-runs; the watcher
// itself never interprets the file.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(context.Context) error) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors replace files on save, which drops
	// a watch registered on the file itself.
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve matrix file path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	logger.Info("watching matrix file", "path", abs)

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
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
			logger.Error("watch error", "error", err)

		case <-fire:
			logger.Info("matrix file changed, re-running")
			if err := onChange(ctx); err != nil {
				// Failures are reported by the callback; keep watching.
				logger.Debug("re-run finished with failures", "error", err)
			}
		}
	}
}
