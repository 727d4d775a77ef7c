package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"
)

// maxLineBytes bounds one log line when reading files back.
const maxLineBytes = 1024 * 1024

// Entry is one parsed JSON log line.
type Entry struct {
	Time  time.Time
	Level string
	Msg   string
	Attrs map[string]any
	Raw   string
	Valid bool
}

// ParseLine parses one line written by the JSON handler. Lines that are not
// JSON come back with Valid false and the text in Raw.
func ParseLine(line string) Entry {
	e := Entry{Raw: line}

	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return e
	}
	e.Valid = true

	if v, ok := fields[slog.TimeKey].(string); ok {
		e.Time, _ = time.Parse(time.RFC3339Nano, v)
	}
	e.Level, _ = fields[slog.LevelKey].(string)
	e.Msg, _ = fields[slog.MessageKey].(string)
	delete(fields, slog.TimeKey)
	delete(fields, slog.LevelKey)
	delete(fields, slog.MessageKey)
	e.Attrs = fields

	return e
}

// AttrKeys returns the attribute names of e, sorted.
func (e Entry) AttrKeys() []string {
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tail returns up to the last n entries of path at or above minLevel.
// Unparseable lines are kept.
func Tail(path string, n int, minLevel slog.Level) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var ring []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		e := ParseLine(scanner.Text())
		if e.Valid && ParseLevel(e.Level) < minLevel {
			continue
		}
		ring = append(ring, e)
		if n > 0 && len(ring) > n {
			ring = ring[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	return ring, nil
}
