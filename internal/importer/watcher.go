package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ArchiveExtensions are the file extensions picked up from the inbox.
var ArchiveExtensions = []string{".gpkg", ".gramps", ".zip", ".gz", ".tgz"}

// DefaultDebounce is the quiet period after the last write before an
// inbox file is imported.
const DefaultDebounce = 2 * time.Second

// ImportFunc imports one archive file.
type ImportFunc func(ctx context.Context, path string) error

// Watcher imports archives dropped into an inbox directory. Bursts of
// events for one file collapse into a single import.
type Watcher struct {
	dir      string
	debounce time.Duration
	importFn ImportFunc

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
	running sync.WaitGroup
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, debounce time.Duration, importFn ImportFunc) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		importFn: importFn,
		pending:  make(map[string]*time.Timer),
	}
}

// IsArchiveFile reports whether name is a visible file with an archive extension.
func IsArchiveFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	lower := strings.ToLower(base)
	for _, ext := range ArchiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Run watches the inbox until ctx is done, then waits for running imports.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create inbox directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	defer w.stop()
	slog.Info("Watching inbox for archives", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Inbox watcher error", "error", err)
		}
	}
}

// handleEvent schedules an import for create and write events on archive
// files. It reports whether an import was scheduled.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if !IsArchiveFile(event.Name) {
		return false
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return false
	}
	w.schedule(ctx, event.Name)
	return true
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.stopped || w.pending[path] != timer {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		w.running.Add(1)
		w.mu.Unlock()

		defer w.running.Done()
		if err := w.importFn(ctx, path); err != nil {
			slog.Error("Inbox import failed", "path", path, "error", err)
		}
	})
	w.pending[path] = timer
}

// pendingCount returns the number of debounced imports not yet started.
func (w *Watcher) pendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.running.Wait()
}
