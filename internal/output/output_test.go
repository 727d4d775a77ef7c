package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_StatusLines(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"status", func(w *Writer) { w.Status("•", "Opening index") }, "• Opening index\n"},
		{"status without icon", func(w *Writer) { w.Status("", "detail") }, "   detail\n"},
		{"success", func(w *Writer) { w.Successf("Indexed %d owners", 3) }, "✓ Indexed 3 owners\n"},
		{"warning", func(w *Writer) { w.Warning("source missing") }, "⚠ source missing\n"},
		{"error", func(w *Writer) { w.Errorf("failed: %s", "locked") }, "✗ failed: locked\n"},
		{"header", func(w *Writer) { w.Header("Results") }, "Results\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_NonTTYHasNoColor(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Success("done")
	w.Matches([]Match{{OwnerID: "1", Score: 1, Matched: 5}})

	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestWriter_Code(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Code("line1\nline2")
	assert.Equal(t, "\n  line1\n  line2\n\n", buf.String())
}

func TestWriter_Matches(t *testing.T) {
	// Given: ranked results
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing them
	w.Matches([]Match{
		{OwnerID: "user-1", Score: 1.0, Matched: 11},
		{OwnerID: "user-22", Score: 0.5, Matched: 6},
	})

	// Then: a header and one aligned row per result, best first
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "RANK")
	assert.Contains(t, lines[1], "user-1 ")
	assert.Contains(t, lines[1], "1.0000")
	assert.Contains(t, lines[1], "████████████")
	assert.Contains(t, lines[2], "0.5000")
	assert.Contains(t, lines[2], "██████░░░░░░")
}

func TestWriter_MatchesEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Matches(nil)
	assert.Equal(t, "no matches\n", buf.String())
}

func TestWriter_Progress(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(50, 100, "User.name")
	assert.Contains(t, buf.String(), "\r[")
	assert.Contains(t, buf.String(), " 50% User.name")
	assert.NotContains(t, buf.String(), "\n")

	w.Progress(100, 100, "User.name")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))

	before := buf.Len()
	w.Progress(1, 0, "ignored")
	assert.Equal(t, before, buf.Len())
}

func TestWriter_ColorForced(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, true)
	w.Progress(1, 2, "x")
	assert.NotEmpty(t, buf.String())
	assert.Same(t, buf, w.Out())
}

func TestRenderProgressBar(t *testing.T) {
	assert.Equal(t, "░░░░", renderProgressBar(0, 0, 4))
	assert.Equal(t, "██░░", renderProgressBar(1, 2, 4))
	assert.Equal(t, "████", renderProgressBar(9, 2, 4))
}
