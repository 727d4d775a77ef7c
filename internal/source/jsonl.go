// Package source reads owner records from files on disk.
//
// A JSONLSource treats every non-blank line of a JSON Lines file as one
// owner. The owner ID and the indexed text are pulled out of each line with
// gjson paths, so nested documents need no schema.
package source

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/index"
)

const (
	// DefaultIDPath is used when no ID path is configured.
	DefaultIDPath = "id"

	maxLineBytes = 4 << 20
)

// JSONLSource lists owners from a JSON Lines file.
type JSONLSource struct {
	path     string
	idPath   string
	textPath string
	logger   *slog.Logger
}

var _ index.OwnerSource = (*JSONLSource)(nil)

// Option configures a JSONLSource.
type Option func(*JSONLSource)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *JSONLSource) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewJSONL creates a source for the file at path. An empty idPath means
// DefaultIDPath. textPath is required.
func NewJSONL(path, idPath, textPath string, opts ...Option) (*JSONLSource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fzerrors.ValidationError("source path is required", nil)
	}
	if strings.TrimSpace(textPath) == "" {
		return nil, fzerrors.ValidationError("text path is required", nil).
			WithDetail("path", path)
	}
	if idPath == "" {
		idPath = DefaultIDPath
	}
	s := &JSONLSource{
		path:     path,
		idPath:   idPath,
		textPath: textPath,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the file path.
func (s *JSONLSource) Path() string { return s.path }

// Batches streams the file in chunks of at most size owners. Each chunk is a
// fresh slice, so fn may keep it.
func (s *JSONLSource) Batches(ctx context.Context, size int, fn func([]index.Owner) error) error {
	if size <= 0 {
		size = index.DefaultBatchSize
	}
	batch := make([]index.Owner, 0, size)
	err := s.each(ctx, func(o index.Owner) error {
		batch = append(batch, o)
		if len(batch) < size {
			return nil
		}
		full := batch
		batch = make([]index.Owner, 0, size)
		return fn(full)
	})
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// Count returns the number of owner lines in the file.
func (s *JSONLSource) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.each(ctx, func(index.Owner) error {
		n++
		return nil
	})
	return n, err
}

// Snapshot reads the whole file into an ID to text map. A later line with
// the same ID replaces an earlier one.
func (s *JSONLSource) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := make(Snapshot)
	err := s.each(ctx, func(o index.Owner) error {
		if _, dup := snap[o.ID]; dup {
			s.logger.Debug("source_duplicate_owner",
				slog.String("path", s.path),
				slog.String("owner_id", o.ID))
		}
		snap[o.ID] = o.Text
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *JSONLSource) each(ctx context.Context, fn func(index.Owner) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fzerrors.New(fzerrors.ErrCodeSourceRead, "failed to open source file", err).
			WithDetail("path", s.path)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		o, err := s.parse(raw, line)
		if err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fzerrors.New(fzerrors.ErrCodeSourceRead, "failed to read source file", err).
			WithDetail("path", s.path).
			WithDetail("line", strconv.Itoa(line+1))
	}
	return nil
}

func (s *JSONLSource) parse(raw []byte, line int) (index.Owner, error) {
	if !gjson.ValidBytes(raw) {
		return index.Owner{}, fzerrors.New(fzerrors.ErrCodeSourceRead, "invalid JSON", nil).
			WithDetail("path", s.path).
			WithDetail("line", strconv.Itoa(line))
	}
	id := strings.TrimSpace(gjson.GetBytes(raw, s.idPath).String())
	if id == "" {
		return index.Owner{}, fzerrors.New(fzerrors.ErrCodeSourceRead, "owner id missing", nil).
			WithDetail("path", s.path).
			WithDetail("line", strconv.Itoa(line)).
			WithDetail("id_path", s.idPath)
	}
	// A missing or null text field is a blank owner, not an error.
	return index.Owner{ID: id, Text: gjson.GetBytes(raw, s.textPath).String()}, nil
}

// Snapshot maps owner IDs to their text at one point in time.
type Snapshot map[string]string

// Changes lists what differs between two snapshots.
type Changes struct {
	Updated []index.Owner
	Removed []string
}

// Empty reports whether there is nothing to apply.
func (c Changes) Empty() bool { return len(c.Updated) == 0 && len(c.Removed) == 0 }

// Diff returns owners that are new or whose text changed in next, and the IDs
// present in prev but gone from next. Both lists are sorted by ID.
func Diff(prev, next Snapshot) Changes {
	var c Changes
	for id, text := range next {
		if old, ok := prev[id]; !ok || old != text {
			c.Updated = append(c.Updated, index.Owner{ID: id, Text: text})
		}
	}
	for id := range prev {
		if _, ok := next[id]; !ok {
			c.Removed = append(c.Removed, id)
		}
	}
	sort.Slice(c.Updated, func(i, j int) bool { return c.Updated[i].ID < c.Updated[j].ID })
	sort.Strings(c.Removed)
	return c
}
