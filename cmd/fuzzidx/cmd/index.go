package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fuzzidx/internal/async"
	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/store"
	"github.com/Aman-CERP/fuzzidx/internal/ui"
	"github.com/Aman-CERP/fuzzidx/pkg/fuzzy"
)

func newIndexCmd() *cobra.Command {
	var (
		noTUI   bool
		force   bool
		workers int
	)

	cmd := &cobra.Command{
		Use:   "index [OwnerType.field...]",
		Short: "Rebuild the index from configured sources",
		Long: `Rebuild trigram rows for configured fields from their JSON Lines sources.

Every owner listed in a source is reindexed; owners missing from the source
keep their rows. Use --force to drop the index and start from scratch.
With no arguments every field that has a source is rebuilt.`,
		Example: `  # Rebuild every field
  fuzzidx index

  # Rebuild one field with 8 parallel partitions
  fuzzidx index User.name --workers 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, args, noTUI, force, workers)
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&force, "force", false, "Delete the existing index before rebuilding")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel partitions per field (default: index.workers)")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, keys []string, noTUI, force bool, workers int) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if workers <= 0 {
		workers = cfg.Index.Workers
	}

	dataDir := cfg.DataDir(root)
	if force {
		if err := clearIndex(dataDir, cfg.Storage.Backend); err != nil {
			return err
		}
	}

	rx := newReindexer()
	p, err := openProject(root, cfg, fuzzy.WithProgress(rx.onProgress))
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	fields, err := p.selectFields(keys)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return fzerrors.ValidationError("no fields with a source to index", nil).
			WithSuggestion("Declare fields with a source in .fuzzidx.yaml, or run 'fuzzidx config init'")
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(noTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithTitle(filepath.Base(root)),
	))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	var summary reindexSummary
	indexer := async.NewBackgroundIndexer(async.IndexerConfig{DataDir: p.dataDir})
	indexer.IndexFunc = func(ctx context.Context, progress *async.IndexProgress) error {
		var err error
		summary, err = rx.run(ctx, p, fields, workers, observers{uiObserver{renderer}, progressObserver{progress}})
		return err
	}
	indexer.Start(ctx)
	runErr := indexer.Wait()

	renderer.Complete(summary.completion())
	if runErr == nil {
		return nil
	}
	msg := "reindex failed"
	if summary.Errors > 0 {
		msg = fmt.Sprintf("reindex failed for %d of %d fields", summary.Errors, len(fields))
	}
	return fzerrors.New(fzerrors.ErrCodeReindexFailed, msg, runErr)
}

// clearIndex removes the on-disk index of backend under dataDir.
func clearIndex(dataDir, backend string) error {
	path := store.IndexPath(dataDir, backend)
	if path == "" {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fzerrors.New(fzerrors.ErrCodeStorageWrite, "cannot remove existing index", err).
			WithDetail("path", path)
	}
	// SQLite WAL side files
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	return nil
}
