package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches a fixed set of files with fsnotify, or by polling
// when fsnotify is unavailable, and emits debounced batches of events.
type FileWatcher struct {
	opts           Options
	logger         *slog.Logger
	fsWatcher      *fsnotify.Watcher
	poller         *PollingWatcher
	debouncer      *Debouncer
	files          map[string]struct{}
	events         chan []FileEvent
	errors         chan error
	stopCh         chan struct{}
	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

// NewFileWatcher creates a watcher. It tries fsnotify first and falls back
// to polling when that fails or opts.ForcePolling is set.
func NewFileWatcher(opts Options) (*FileWatcher, error) {
	opts = opts.WithDefaults()

	w := &FileWatcher{
		opts:      opts,
		logger:    slog.Default(),
		debouncer: NewDebouncer(opts.DebounceWindow),
		files:     make(map[string]struct{}),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsw
			return w, nil
		}
		w.logger.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
	}
	w.poller = NewPollingWatcher(opts.PollInterval)
	return w, nil
}

// CleanPath returns the form of path used in events.
func CleanPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// Start watches paths until ctx is done or Stop is called. It blocks.
// The files need not exist yet.
func (w *FileWatcher) Start(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no files to watch")
	}

	w.mu.Lock()
	for _, p := range paths {
		clean, err := CleanPath(p)
		if err != nil {
			w.mu.Unlock()
			return err
		}
		w.files[clean] = struct{}{}
	}
	w.mu.Unlock()

	go w.forwardDebounced(ctx)

	if w.fsWatcher != nil {
		return w.startFsnotify(ctx)
	}
	return w.startPolling(ctx)
}

// Files returns the watched paths in sorted order.
func (w *FileWatcher) Files() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (w *FileWatcher) watched(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.files[path]
	return ok
}

func (w *FileWatcher) startFsnotify(ctx context.Context) error {
	// Watch parent directories: a save by rename replaces the inode, which
	// drops a watch placed on the file itself.
	dirs := make(map[string]struct{})
	for _, p := range w.Files() {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watch directory %s: %w", dir, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if !w.watched(path) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: path, Operation: op, Timestamp: time.Now()})
}

func (w *FileWatcher) startPolling(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case event, ok := <-w.poller.Events():
				if !ok {
					return
				}
				w.debouncer.Add(event)
			case err, ok := <-w.poller.Errors():
				if !ok {
					return
				}
				w.emitError(err)
			}
		}
	}()

	return w.poller.Start(ctx, w.Files())
}

func (w *FileWatcher) forwardDebounced(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emitEvents(batch)
		}
	}
}

func (w *FileWatcher) emitEvents(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped || len(batch) == 0 {
		return
	}
	select {
	case w.events <- batch:
	default:
		dropped := w.droppedBatches.Add(1)
		w.logger.Warn("watch_event_buffer_full",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", dropped))
	}
}

func (w *FileWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops watching and closes the channels. Safe to call multiple times.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()

	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.poller != nil {
		_ = w.poller.Stop()
	}

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of debounced event batches.
func (w *FileWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *FileWatcher) Errors() <-chan error {
	return w.errors
}

// DroppedBatches returns how many batches were dropped on a full buffer.
func (w *FileWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// WatcherType returns "fsnotify" or "polling".
func (w *FileWatcher) WatcherType() string {
	if w.fsWatcher != nil {
		return "fsnotify"
	}
	return "polling"
}
