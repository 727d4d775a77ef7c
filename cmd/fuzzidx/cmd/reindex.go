package cmd

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/fuzzidx/internal/async"
	"github.com/Aman-CERP/fuzzidx/internal/config"
	"github.com/Aman-CERP/fuzzidx/internal/index"
	"github.com/Aman-CERP/fuzzidx/internal/ui"
	"github.com/Aman-CERP/fuzzidx/pkg/fuzzy"
)

// reindexObserver receives the progress of a reindex run.
type reindexObserver interface {
	loading(field, path string)
	started(fields, owners int)
	fieldStarted(field string, total int)
	// progress reports committed owners so far for field, and the owners
	// and rows added since the previous call.
	progress(field string, done, total, owners, rows int)
	fieldFailed(field string, err error)
	fieldDone(field string)
}

// reindexSummary totals a run.
type reindexSummary struct {
	Fields      int
	Owners      int
	BlankOwners int
	Rows        int
	Chunks      int
	Strategy    string
	Errors      int
	Duration    time.Duration
}

func (s reindexSummary) completion() ui.CompletionStats {
	return ui.CompletionStats{
		Fields:      s.Fields,
		Owners:      s.Owners,
		BlankOwners: s.BlankOwners,
		Rows:        s.Rows,
		Chunks:      s.Chunks,
		Strategy:    s.Strategy,
		Duration:    s.Duration,
		Errors:      s.Errors,
	}
}

// reindexer rebuilds configured fields from their sources. Its onProgress
// method must be installed on the registry with fuzzy.WithProgress.
type reindexer struct {
	mu    sync.Mutex
	obs   reindexObserver
	field string
	total int
	done  int
	runs  map[string]fuzzy.BatchReport
}

func newReindexer() *reindexer {
	return &reindexer{runs: make(map[string]fuzzy.BatchReport)}
}

// onProgress turns per-run cumulative reports into per-field progress.
// Parallel partitions each report under their own run ID.
func (r *reindexer) onProgress(rep fuzzy.BatchReport) {
	r.mu.Lock()
	prev := r.runs[rep.RunID]
	r.runs[rep.RunID] = rep
	owners := rep.Owners - prev.Owners
	rows := rep.Rows - prev.Rows
	r.done += owners
	obs, field, done, total := r.obs, r.field, r.done, r.total
	r.mu.Unlock()

	if obs != nil {
		obs.progress(field, done, total, owners, rows)
	}
}

func (r *reindexer) begin(obs reindexObserver, field string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = obs
	r.field = field
	r.total = total
	r.done = 0
	clear(r.runs)
}

type reindexJob struct {
	cfg   config.FieldConfig
	field *fuzzy.Field
	total int
}

// run counts every source first, then rebuilds the fields one at a time.
// A failed field is reported and the run moves on; the returned error joins
// every failure.
func (r *reindexer) run(ctx context.Context, p *project, fields []config.FieldConfig, workers int, obs reindexObserver) (reindexSummary, error) {
	start := time.Now()
	summary := reindexSummary{Strategy: p.reg.Strategy()}

	var errs []error
	jobs := make([]reindexJob, 0, len(fields))
	owners := 0
	for _, fc := range fields {
		obs.loading(fc.Key(), fc.Source)
		job, err := prepare(ctx, p, fc)
		if err != nil {
			summary.Errors++
			errs = append(errs, err)
			obs.fieldFailed(fc.Key(), err)
			continue
		}
		jobs = append(jobs, job)
		owners += job.total
	}

	obs.started(len(jobs), owners)
	for _, job := range jobs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		name := job.cfg.Key()
		r.begin(obs, name, job.total)
		obs.fieldStarted(name, job.total)

		report, err := r.rebuild(ctx, p, job, workers)
		if report != nil {
			summary.Owners += report.Owners
			summary.BlankOwners += report.BlankOwners
			summary.Rows += report.Rows
			summary.Chunks += report.Chunks
		}
		if err != nil {
			summary.Errors++
			errs = append(errs, err)
			obs.fieldFailed(name, err)
			continue
		}
		summary.Fields++
		obs.fieldDone(name)
	}
	r.begin(nil, "", 0)

	summary.Duration = time.Since(start)
	slog.Info("reindex_run_complete",
		slog.Int("fields", summary.Fields),
		slog.Int("owners", summary.Owners),
		slog.Int("rows", summary.Rows),
		slog.Int("errors", summary.Errors),
		slog.Duration("duration", summary.Duration))
	return summary, errors.Join(errs...)
}

func prepare(ctx context.Context, p *project, fc config.FieldConfig) (reindexJob, error) {
	f, err := p.reg.Field(fc.OwnerType, fc.Field)
	if err != nil {
		return reindexJob{}, err
	}
	src, err := p.openSource(fc)
	if err != nil {
		return reindexJob{}, err
	}
	n, err := src.Count(ctx)
	if err != nil {
		return reindexJob{}, err
	}
	return reindexJob{cfg: fc, field: f, total: n}, nil
}

func (r *reindexer) rebuild(ctx context.Context, p *project, job reindexJob, workers int) (*fuzzy.BatchReport, error) {
	src, err := p.openSource(job.cfg)
	if err != nil {
		return nil, err
	}
	if workers <= 1 {
		return job.field.BulkUpdate(ctx, src)
	}

	snap, err := src.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	owners := make([]fuzzy.Owner, 0, len(snap))
	for id, text := range snap {
		owners = append(owners, fuzzy.Owner{ID: id, Text: text})
	}
	return job.field.BulkUpdateParallel(ctx, index.PartitionByID(owners, workers), workers)
}

// uiObserver forwards progress to a terminal renderer.
type uiObserver struct {
	r ui.Renderer
}

func (o uiObserver) loading(field, path string) {
	o.r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLoading, Field: field, Message: field + " from " + path})
}

func (o uiObserver) started(int, int) {}

func (o uiObserver) fieldStarted(field string, total int) {
	o.r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Total: total, Field: field})
}

func (o uiObserver) progress(field string, done, total, _, _ int) {
	o.r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Current: done, Total: total, Field: field})
}

func (o uiObserver) fieldFailed(field string, err error) {
	o.r.AddError(ui.ErrorEvent{Field: field, Err: err})
}

func (o uiObserver) fieldDone(string) {}

// progressObserver records progress for the index_status tool.
type progressObserver struct {
	p *async.IndexProgress
}

func (o progressObserver) loading(string, string) {}

func (o progressObserver) started(fields, owners int) {
	o.p.SetTotals(fields, owners)
}

func (o progressObserver) fieldStarted(field string, _ int) {
	o.p.StartField(field)
}

func (o progressObserver) progress(_ string, _, _, owners, rows int) {
	o.p.AddOwners(owners, rows)
}

func (o progressObserver) fieldFailed(field string, err error) {
	slog.Warn("reindex_field_failed", slog.String("field", field), slog.String("error", err.Error()))
}

func (o progressObserver) fieldDone(string) {
	o.p.FieldDone()
}

// observers fans progress out to several observers.
type observers []reindexObserver

func (all observers) loading(field, path string) {
	for _, o := range all {
		o.loading(field, path)
	}
}

func (all observers) started(fields, owners int) {
	for _, o := range all {
		o.started(fields, owners)
	}
}

func (all observers) fieldStarted(field string, total int) {
	for _, o := range all {
		o.fieldStarted(field, total)
	}
}

func (all observers) progress(field string, done, total, owners, rows int) {
	for _, o := range all {
		o.progress(field, done, total, owners, rows)
	}
}

func (all observers) fieldFailed(field string, err error) {
	for _, o := range all {
		o.fieldFailed(field, err)
	}
}

func (all observers) fieldDone(field string) {
	for _, o := range all {
		o.fieldDone(field)
	}
}
