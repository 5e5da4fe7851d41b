// Package watch turns a local directory into a drop folder: files created or
// written there are enqueued for upload once they stop changing.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rescale/webup/internal/constants"
	"github.com/rescale/webup/internal/logging"
	"github.com/rescale/webup/internal/transfer"
)

// Enqueuer accepts files for upload. *transfer.Queue satisfies it.
type Enqueuer interface {
	Enqueue(files []transfer.Source, target string) []*transfer.UploadTask
}

// Options configures a Watcher
type Options struct {
	Debounce time.Duration // defaults to constants.WatchDebounce
	Logger   *logging.Logger
}

// Watcher watches one directory, non-recursively.
type Watcher struct {
	dir      string
	target   func() string
	queue    Enqueuer
	logger   *logging.Logger
	debounce *debounce
	watcher  *fsnotify.Watcher
}

// New starts watching dir. target is evaluated when a file settles, so a
// changing remote location is honored.
func New(dir string, target func() string, queue Enqueuer, opts Options) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	d := opts.Debounce
	if d <= 0 {
		d = constants.WatchDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Watcher{
		dir:      dir,
		target:   target,
		queue:    queue,
		logger:   logger,
		debounce: newDebounce(d),
		watcher:  fw,
	}, nil
}

// Run processes events until ctx is cancelled, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	defer w.debounce.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ignored(event.Name) {
				continue
			}
			if isOp(event.Op, fsnotify.Create) || isOp(event.Op, fsnotify.Write) {
				w.debounce.add(event, w.settle)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Str("dir", w.dir).Msg("Watcher error")
		}
	}
}

// settle runs once a path has been quiet for the debounce duration
func (w *Watcher) settle(event fsnotify.Event) {
	info, err := os.Stat(event.Name)
	if err != nil {
		// Removed or renamed before it settled
		w.logger.Debug().Err(err).Str("path", event.Name).Msg("Skipping vanished file")
		return
	}
	if !info.Mode().IsRegular() {
		return
	}

	src, err := transfer.FileSource(event.Name)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", event.Name).Msg("Cannot upload dropped file")
		return
	}

	target := w.target()
	w.logger.Info().Str("file", src.Name).Str("target", target).Msg("Dropped file queued")
	w.queue.Enqueue([]transfer.Source{src}, target)
}

// ignored filters editor temp files and dot-files
func ignored(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~")
}
