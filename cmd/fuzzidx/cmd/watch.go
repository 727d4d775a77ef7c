package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/output"
	"github.com/Aman-CERP/fuzzidx/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var polling bool

	cmd := &cobra.Command{
		Use:   "watch [OwnerType.field...]",
		Short: "Reindex owners when their source files change",
		Long: `Watch the JSON Lines sources of configured fields and reindex only the
owners whose values changed, forgetting owners that disappeared.

The first snapshot of each file is taken as already indexed, so run
'fuzzidx index' first. Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, args, polling)
		},
	}

	cmd.Flags().BoolVar(&polling, "poll", false, "Poll file stats instead of using filesystem events")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, keys []string, polling bool) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := openProject(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	fields, err := p.selectFields(keys)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return fzerrors.ValidationError("no fields with a source to watch", nil).
			WithSuggestion("Declare fields with a source in .fuzzidx.yaml")
	}

	out := output.New(cmd.OutOrStdout())
	stop, done, err := startWatching(ctx, p, fields, polling, func(r watcher.Result) {
		logResult(r)
		switch {
		case r.Err != nil:
			out.Warningf("%s: %d updated, %d removed, %d failed: %v", r.Name, r.Updated, r.Removed, r.Failed, r.Err)
		case r.Updated > 0 || r.Removed > 0:
			out.Successf("%s: %d updated, %d removed", r.Name, r.Updated, r.Removed)
		}
	})
	if err != nil {
		return err
	}
	defer stop()

	out.Statusf("👀", "Watching %d fields, Ctrl+C to stop", len(fields))
	select {
	case <-ctx.Done():
	case <-done:
		return fzerrors.InternalError("file watcher stopped", nil).
			WithSuggestion("Run with --debug and check the log, or retry with --poll")
	}
	return nil
}
