package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fuzzidx/internal/async"
	"github.com/Aman-CERP/fuzzidx/internal/config"
	"github.com/Aman-CERP/fuzzidx/internal/logging"
	"github.com/Aman-CERP/fuzzidx/internal/mcp"
	"github.com/Aman-CERP/fuzzidx/internal/watcher"
	"github.com/Aman-CERP/fuzzidx/pkg/fuzzy"
)

func newServeCmd() *cobra.Command {
	var (
		reindex bool
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index to AI assistants over MCP",
		Long: `Start an MCP server on stdio exposing the fuzzy_search, reindex_owner,
forget_owner and index_status tools.

stdout carries JSON-RPC only, so logs go to ~/.fuzzidx/logs/server.log.
When the index is empty, a previous reindex did not finish, or --reindex
is given, configured sources are reindexed in the background; searches
answer right away and are flagged partial until the run completes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, reindex, watch)
		},
	}

	cmd.Flags().BoolVar(&reindex, "reindex", false, "Reindex configured sources in the background at startup")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reindex owners when their source files change")

	return cmd
}

func runServe(ctx context.Context, reindex, watch bool) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cleanup, err := logging.SetupServerMode(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	rx := newReindexer()
	p, err := openProject(root, cfg, fuzzy.WithProgress(rx.onProgress))
	if err != nil {
		slog.Error("serve_open_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = p.Close() }()

	srv, err := mcp.NewServer(p.reg, cfg)
	if err != nil {
		return err
	}

	fields, err := p.selectFields(nil)
	if err != nil {
		return err
	}
	if len(fields) > 0 && (reindex || needsReindex(ctx, p)) {
		indexer := async.NewBackgroundIndexer(async.IndexerConfig{DataDir: p.dataDir})
		indexer.IndexFunc = func(ctx context.Context, progress *async.IndexProgress) error {
			_, err := rx.run(ctx, p, fields, cfg.Index.Workers, progressObserver{progress})
			return err
		}
		srv.SetIndexProgress(indexer.Progress())
		indexer.Start(ctx)
		defer indexer.Stop()
	}

	if watch {
		stopWatch, _, err := startWatching(ctx, p, fields, false, logResult)
		if err != nil {
			return err
		}
		defer stopWatch()
	}

	return srv.Serve(ctx, cfg.Server.Transport)
}

// needsReindex reports whether the store is empty or the last reindex of
// the data directory did not finish.
func needsReindex(ctx context.Context, p *project) bool {
	if async.HasIncompleteRun(p.dataDir) {
		slog.Info("reindex_incomplete_detected", slog.String("data_dir", p.dataDir))
		return true
	}
	stats, err := p.reg.Stats(ctx)
	if err != nil {
		slog.Warn("serve_stats_failed", slog.String("error", err.Error()))
		return false
	}
	return stats.Rows == 0
}

// startWatching binds every field to its source and applies file changes
// in the background until ctx is done or the returned stop is called.
// done closes when watching ends, including when the watcher fails.
func startWatching(ctx context.Context, p *project, fields []config.FieldConfig, forcePolling bool, onResult func(watcher.Result)) (stop func(), done <-chan struct{}, err error) {
	applier := watcher.NewApplier()
	for _, fc := range fields {
		src, err := p.openSource(fc)
		if err != nil {
			return nil, nil, err
		}
		f, err := p.reg.Field(fc.OwnerType, fc.Field)
		if err != nil {
			return nil, nil, err
		}
		if err := applier.Bind(ctx, watcher.Binding{Name: fc.Key(), Source: src, Target: f}); err != nil {
			return nil, nil, err
		}
	}

	w, err := watcher.NewFileWatcher(watcher.Options{
		DebounceWindow: p.cfg.DebounceDuration(),
		ForcePolling:   forcePolling,
	})
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	paths := applier.Paths()
	go func() {
		if err := w.Start(ctx, paths); err != nil && ctx.Err() == nil {
			slog.Error("watch_start_failed", slog.String("error", err.Error()))
			cancel()
		}
	}()
	go func() {
		for err := range w.Errors() {
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = applier.Run(ctx, w.Events(), onResult)
	}()

	slog.Info("watch_started",
		slog.Int("files", len(paths)),
		slog.String("watcher", w.WatcherType()))

	return func() {
		cancel()
		_ = w.Stop()
		<-finished
	}, finished, nil
}

func logResult(r watcher.Result) {
	attrs := []any{
		slog.String("binding", r.Name),
		slog.Int("updated", r.Updated),
		slog.Int("removed", r.Removed),
		slog.Int("failed", r.Failed),
	}
	if r.Err != nil {
		slog.Warn("watch_result", append(attrs, slog.String("error", r.Err.Error()))...)
		return
	}
	slog.Debug("watch_result", attrs...)
}
