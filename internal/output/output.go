// Package output provides CLI output formatting: status lines, result
// tables and inline progress. Color is used only when writing to a
// terminal and NO_COLOR is unset.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/fuzzidx/internal/ui"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
	styles   ui.Styles
	bar      progress.Model
}

// New creates a Writer. Color is enabled for terminals only.
func New(out io.Writer) *Writer {
	return NewWithColor(out, ui.IsTTY(out) && !ui.DetectNoColor())
}

// NewWithColor creates a Writer with color forced on or off.
func NewWithColor(out io.Writer, useColor bool) *Writer {
	return &Writer{
		out:      out,
		useColor: useColor,
		styles:   ui.GetStyles(!useColor),
		bar: progress.New(
			progress.WithSolidFill(ui.ColorAccent),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
	}
}

// Out returns the underlying writer.
func (w *Writer) Out() io.Writer {
	return w.out
}

// Status prints a status message with an icon.
// Write errors are ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("⚠"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a bold heading line.
func (w *Writer) Header(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(msg))
}

// Code prints an indented block.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Match is one search result row.
type Match struct {
	OwnerID string
	Score   float64
	Matched int
}

// Matches prints ranked results as an aligned table, with a score bar.
func (w *Writer) Matches(results []Match) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render("no matches"))
		return
	}

	top := results[0].Score
	idWidth := len("OWNER")
	for _, r := range results {
		idWidth = max(idWidth, lipgloss.Width(r.OwnerID))
	}

	header := fmt.Sprintf("%-4s %-*s %8s %7s", "RANK", idWidth, "OWNER", "SCORE", "SHARED")
	_, _ = fmt.Fprintln(w.out, w.styles.Label.Render(header))
	for i, r := range results {
		rel := 0.0
		if top > 0 {
			rel = r.Score / top
		}
		_, _ = fmt.Fprintf(w.out, "%-4d %-*s %8.4f %7d  %s\n",
			i+1, idWidth, r.OwnerID, r.Score, r.Matched, w.scoreBar(rel))
	}
}

// scoreBar renders a relative score bar, 0 to 1.
func (w *Writer) scoreBar(fraction float64) string {
	const width = 12
	if w.useColor {
		bar := w.bar
		bar.Width = width
		return bar.ViewAs(fraction)
	}
	return renderProgressBar(int(fraction*1000), 1000, width)
}

// Progress prints an in-place progress line.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total)
	if pct > 1 {
		pct = 1
	}

	var bar string
	if w.useColor {
		bar = w.bar.ViewAs(pct)
	} else {
		bar = "[" + renderProgressBar(current, total, 30) + "]"
	}

	_, _ = fmt.Fprintf(w.out, "\r%s %3.0f%% %s", bar, pct*100, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// ProgressDone completes a progress line with newline.
func (w *Writer) ProgressDone() {
	_, _ = fmt.Fprintln(w.out)
}

// renderProgressBar creates a text progress bar.
func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	filled := int(float64(current) / float64(total) * float64(width))
	filled = min(max(filled, 0), width)

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
