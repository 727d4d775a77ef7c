package cmd

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fuzzidx/internal/store"
	"github.com/Aman-CERP/fuzzidx/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Show the backend, size, row and owner counts of the index, with the
row count of every owner type and the configured fields.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput bool) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := openProject(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	stats, err := p.reg.Stats(cmd.Context())
	if err != nil {
		return err
	}

	caps := p.store.Capabilities()
	info := ui.StatusInfo{
		ProjectName: filepath.Base(root),
		Backend:     stats.Backend,
		Path:        store.IndexPath(p.dataDir, p.backend),
		Rows:        stats.Rows,
		Owners:      stats.Owners,
		OwnerTypes:  stats.OwnerTypes,
		MultiRow:    caps.MultiRowInsert,
		MaxRows:     caps.MaxRowsPerInsert,
		Fields:      make([]string, 0, len(cfg.Fields)),
	}
	for _, f := range cfg.Fields {
		info.Fields = append(info.Fields, f.Key())
	}
	if info.Path != "" {
		info.SizeBytes, info.LastIndexed = diskUsage(info.Path)
	}

	r := ui.NewStatusRenderer(cmd.OutOrStdout(), !ui.IsTTY(cmd.OutOrStdout()) || ui.DetectNoColor())
	if jsonOutput {
		return r.RenderJSON(info)
	}
	return r.Render(info)
}

// diskUsage sums the sizes of the files under path, a file or directory,
// and returns the latest modification time among them.
func diskUsage(path string) (size int64, modified time.Time) {
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size += info.Size()
		if info.ModTime().After(modified) {
			modified = info.ModTime()
		}
		return nil
	})
	// SQLite keeps recent writes in the WAL until a checkpoint.
	if info, err := os.Stat(path + "-wal"); err == nil {
		size += info.Size()
		if info.ModTime().After(modified) {
			modified = info.ModTime()
		}
	}
	return size, modified
}
