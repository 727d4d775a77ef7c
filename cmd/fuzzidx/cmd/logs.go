package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fuzzidx/internal/logging"
	"github.com/Aman-CERP/fuzzidx/internal/ui"
)

func newLogsCmd() *cobra.Command {
	var (
		lines   int
		level   string
		file    string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries",
		Long: `Show the last entries of the fuzzidx log file, written by 'fuzzidx serve'
and by any command run with --debug.`,
		Example: `  fuzzidx logs -n 100
  fuzzidx logs --level warn`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(file)
			if err != nil {
				return err
			}
			entries, err := logging.Tail(path, lines, logging.ParseLevel(level))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			styles := ui.GetStyles(noColor || !ui.IsTTY(out) || ui.DetectNoColor())
			for _, e := range entries {
				writeEntry(out, styles, e)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of entries to show")
	cmd.Flags().StringVar(&level, "level", "debug", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&file, "file", "", "Path to log file")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func writeEntry(w io.Writer, styles ui.Styles, e logging.Entry) {
	if !e.Valid {
		_, _ = fmt.Fprintln(w, e.Raw)
		return
	}

	lvl := fmt.Sprintf("%-5s", strings.ToUpper(e.Level))
	switch strings.ToUpper(e.Level) {
	case "ERROR":
		lvl = styles.Error.Render(lvl)
	case "WARN":
		lvl = styles.Warning.Render(lvl)
	case "DEBUG":
		lvl = styles.Dim.Render(lvl)
	}

	var sb strings.Builder
	sb.WriteString(styles.Dim.Render(e.Time.Format("2006-01-02 15:04:05.000")))
	sb.WriteString(" ")
	sb.WriteString(lvl)
	sb.WriteString(" ")
	sb.WriteString(e.Msg)
	for _, k := range e.AttrKeys() {
		fmt.Fprintf(&sb, " %s=%v", styles.Label.Render(k), e.Attrs[k])
	}
	_, _ = fmt.Fprintln(w, sb.String())
}
