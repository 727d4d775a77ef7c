package async

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Aman-CERP/fuzzidx/internal/store"
)

// incompleteMarker exists in the data directory while a run is in progress.
// Finding it at startup means the previous run did not finish.
const incompleteMarker = "reindex.incomplete"

// IndexFunc does the reindex work and reports into progress.
type IndexFunc func(ctx context.Context, progress *IndexProgress) error

// IndexerConfig configures a BackgroundIndexer.
type IndexerConfig struct {
	// DataDir holds the reindex lock and the incomplete marker.
	DataDir string
	Logger  *slog.Logger
}

// BackgroundIndexer runs one IndexFunc in a goroutine under the reindex lock.
type BackgroundIndexer struct {
	config   IndexerConfig
	logger   *slog.Logger
	progress *IndexProgress

	// IndexFunc is the work to run. Nil marks the run ready at once.
	IndexFunc IndexFunc

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	started bool
	running bool
	err     error
}

// NewBackgroundIndexer creates an idle indexer.
func NewBackgroundIndexer(cfg IndexerConfig) *BackgroundIndexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BackgroundIndexer{
		config:   cfg,
		logger:   logger,
		progress: NewIndexProgress(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the progress tracker.
func (b *BackgroundIndexer) Progress() *IndexProgress {
	return b.progress
}

// IsRunning reports whether the run is in progress.
func (b *BackgroundIndexer) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start launches the run and returns at once. Only the first call has an
// effect.
func (b *BackgroundIndexer) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.running = true
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *BackgroundIndexer) fail(err error) {
	b.progress.SetError(err.Error())
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
	b.logger.Error("background_reindex_failed", slog.String("error", err.Error()))
}

func (b *BackgroundIndexer) run(ctx context.Context) {
	defer close(b.doneCh)
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-b.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := os.MkdirAll(b.config.DataDir, 0o755); err != nil {
		b.fail(fmt.Errorf("create data directory: %w", err))
		return
	}

	lock := store.NewReindexLock(b.config.DataDir)
	if err := lock.LockContext(ctx); err != nil {
		b.fail(err)
		return
	}
	defer func() { _ = lock.Unlock() }()

	marker := filepath.Join(b.config.DataDir, incompleteMarker)
	if err := os.WriteFile(marker, []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
		b.fail(fmt.Errorf("write reindex marker: %w", err))
		return
	}

	start := time.Now()
	b.logger.Info("background_reindex_started", slog.String("data_dir", b.config.DataDir))

	if b.IndexFunc != nil {
		if err := b.IndexFunc(ctx, b.progress); err != nil {
			// The marker stays so the next start knows the index is partial.
			b.fail(err)
			return
		}
	}

	_ = os.Remove(marker)
	b.progress.SetReady()
	b.logger.Info("background_reindex_complete", slog.Duration("duration", time.Since(start)))
}

// Stop cancels the run and waits for it to return. Safe to call more than
// once, and before Start.
func (b *BackgroundIndexer) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })

	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if started {
		<-b.doneCh
	}
}

// Wait blocks until the run finishes and returns its error.
func (b *BackgroundIndexer) Wait() error {
	<-b.doneCh
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// HasIncompleteRun reports whether a previous run in dataDir stopped before
// finishing.
func HasIncompleteRun(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, incompleteMarker))
	return err == nil
}
