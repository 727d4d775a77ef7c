package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"maps"
	"sort"
	"sync"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/source"
)

// Target receives owner changes for one indexed field.
type Target interface {
	Update(ctx context.Context, ownerID, text string) (int, error)
	Forget(ctx context.Context, ownerID string) (int, error)
}

// Binding ties a source file to the field it feeds.
type Binding struct {
	// Name labels the binding in logs and results, e.g. "User.name".
	Name   string
	Source *source.JSONLSource
	Target Target
}

type binding struct {
	Binding
	snapshot source.Snapshot
}

// Result describes one binding after a batch was applied.
type Result struct {
	Path    string
	Name    string
	Updated int
	Removed int
	Failed  int
	// Err is the first error seen. Owners that failed are retried on the
	// next event for the file.
	Err error
}

// Applier reindexes owners whose values changed in watched source files.
type Applier struct {
	logger   *slog.Logger
	retry    fzerrors.RetryConfig
	mu       sync.Mutex
	bindings map[string][]*binding
}

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ApplierOption {
	return func(a *Applier) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRetry sets the retry policy used around each owner write.
func WithRetry(cfg fzerrors.RetryConfig) ApplierOption {
	return func(a *Applier) { a.retry = cfg }
}

// NewApplier creates an Applier with no bindings.
func NewApplier(opts ...ApplierOption) *Applier {
	a := &Applier{
		logger:   slog.Default(),
		retry:    fzerrors.DefaultRetryConfig(),
		bindings: make(map[string][]*binding),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Bind registers b and snapshots its file. The snapshot is the baseline
// for the first diff, so the index is expected to match the file already.
// A missing file gives an empty baseline.
func (a *Applier) Bind(ctx context.Context, b Binding) error {
	if b.Source == nil || b.Target == nil {
		return fzerrors.ValidationError("binding needs a source and a target", nil).
			WithDetail("name", b.Name)
	}
	path, err := CleanPath(b.Source.Path())
	if err != nil {
		return err
	}
	snap, err := readSnapshot(ctx, b.Source)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.bindings[path] = append(a.bindings[path], &binding{Binding: b, snapshot: snap})
	return nil
}

// Paths returns the bound file paths in sorted order.
func (a *Applier) Paths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.bindings))
	for p := range a.bindings {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func readSnapshot(ctx context.Context, src *source.JSONLSource) (source.Snapshot, error) {
	snap, err := src.Snapshot(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		return source.Snapshot{}, nil
	}
	return snap, err
}

// Apply processes one debounced batch. Events for unbound paths are ignored.
// Bindings are applied one at a time, so writes for one owner never race.
func (a *Applier) Apply(ctx context.Context, batch []FileEvent) []Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	var results []Result
	for _, ev := range batch {
		for _, b := range a.bindings[ev.Path] {
			res := a.applyBinding(ctx, b, ev)
			res.Path = ev.Path
			results = append(results, res)
		}
	}
	return results
}

func (a *Applier) applyBinding(ctx context.Context, b *binding, ev FileEvent) Result {
	res := Result{Name: b.Name}

	next := source.Snapshot{}
	if !ev.Operation.Removed() {
		snap, err := readSnapshot(ctx, b.Source)
		if err != nil {
			res.Err = err
			a.logger.Warn("watch_source_unreadable",
				slog.String("path", ev.Path),
				slog.String("binding", b.Name),
				slog.String("error", err.Error()))
			return res
		}
		next = snap
	}

	changes := source.Diff(b.snapshot, next)
	applied := maps.Clone(b.snapshot)
	if applied == nil {
		applied = source.Snapshot{}
	}

	fail := func(ownerID string, err error) {
		res.Failed++
		if res.Err == nil {
			res.Err = err
		}
		a.logger.Warn("watch_owner_failed",
			slog.String("binding", b.Name),
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()))
	}

	for _, o := range changes.Updated {
		err := fzerrors.Retry(ctx, a.retry, func() error {
			_, err := b.Target.Update(ctx, o.ID, o.Text)
			return err
		})
		if err != nil {
			fail(o.ID, err)
			continue
		}
		applied[o.ID] = o.Text
		res.Updated++
	}
	for _, id := range changes.Removed {
		err := fzerrors.Retry(ctx, a.retry, func() error {
			_, err := b.Target.Forget(ctx, id)
			return err
		})
		if err != nil {
			fail(id, err)
			continue
		}
		delete(applied, id)
		res.Removed++
	}
	b.snapshot = applied

	a.logger.Info("watch_apply_complete",
		slog.String("path", ev.Path),
		slog.String("binding", b.Name),
		slog.String("op", ev.Operation.String()),
		slog.Int("updated", res.Updated),
		slog.Int("removed", res.Removed),
		slog.Int("failed", res.Failed))
	return res
}

// Run applies batches from events until the channel closes or ctx is done.
// onResult, when non-nil, sees every result.
func (a *Applier) Run(ctx context.Context, events <-chan []FileEvent, onResult func(Result)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			for _, res := range a.Apply(ctx, batch) {
				if onResult != nil {
					onResult(res)
				}
			}
		}
	}
}
