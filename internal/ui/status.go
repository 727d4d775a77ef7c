package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// StatusInfo describes an index for 'fuzzidx stats'.
type StatusInfo struct {
	ProjectName string         `json:"project_name"`
	Backend     string         `json:"backend"`
	Path        string         `json:"path,omitempty"`
	Rows        int            `json:"rows"`
	Owners      int            `json:"owners"`
	OwnerTypes  map[string]int `json:"owner_types"`
	SizeBytes   int64          `json:"size_bytes"`
	LastIndexed time.Time      `json:"last_indexed,omitzero"`
	MultiRow    bool           `json:"multi_row_insert"`
	MaxRows     int            `json:"max_rows_per_insert"`
	Fields      []string       `json:"fields"`
}

// StatusRenderer displays index statistics.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render writes info as aligned text.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index: "+info.ProjectName))

	_, _ = fmt.Fprintf(r.out, "  Backend:      %s\n", info.Backend)
	if info.Path != "" {
		_, _ = fmt.Fprintf(r.out, "  Path:         %s\n", info.Path)
	}
	_, _ = fmt.Fprintf(r.out, "  Size:         %s\n", FormatBytes(info.SizeBytes))
	if !info.LastIndexed.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last indexed: %s\n", formatTime(info.LastIndexed))
	}
	bulk := r.styles.Warning.Render("off")
	if info.MultiRow {
		bulk = r.styles.Success.Render(fmt.Sprintf("on (%d rows/statement)", info.MaxRows))
	}
	_, _ = fmt.Fprintf(r.out, "  Bulk insert:  %s\n\n", bulk)

	_, _ = fmt.Fprintf(r.out, "  Rows:         %d\n", info.Rows)
	_, _ = fmt.Fprintf(r.out, "  Owners:       %d\n", info.Owners)

	if len(info.OwnerTypes) > 0 {
		types := make([]string, 0, len(info.OwnerTypes))
		for t := range info.OwnerTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		_, _ = fmt.Fprintln(r.out, "  Owner types:")
		for _, t := range types {
			_, _ = fmt.Fprintf(r.out, "    %-20s %d\n", t, info.OwnerTypes[t])
		}
	}

	if len(info.Fields) > 0 {
		_, _ = fmt.Fprintln(r.out, "  Configured fields:")
		for _, f := range info.Fields {
			_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.Label.Render(f))
		}
	}

	return nil
}

// RenderJSON outputs info as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
