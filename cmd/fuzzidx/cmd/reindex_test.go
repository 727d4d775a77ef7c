package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fuzzidx/internal/async"
	"github.com/Aman-CERP/fuzzidx/pkg/fuzzy"
)

type recordingObserver struct {
	mu            sync.Mutex
	fields        int
	owners        int
	added         int
	rows          int
	startedFields []string
	done          []string
	failed        []string
}

func (o *recordingObserver) loading(string, string) {}

func (o *recordingObserver) started(fields, owners int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fields, o.owners = fields, owners
}

func (o *recordingObserver) fieldStarted(field string, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startedFields = append(o.startedFields, field)
}

func (o *recordingObserver) progress(_ string, _, _, owners, rows int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.added += owners
	o.rows += rows
}

func (o *recordingObserver) fieldFailed(field string, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, field)
}

func (o *recordingObserver) fieldDone(field string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done = append(o.done, field)
}

func openTestProject(t *testing.T, dir string, opts ...fuzzy.Option) *project {
	t.Helper()
	projectDir = dir
	root, cfg, err := loadConfig()
	require.NoError(t, err)
	p, err := openProject(root, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestReindexer_OnProgressSumsRuns(t *testing.T) {
	// Given: a reindexer tracking one field
	rx := newReindexer()
	obs := &recordingObserver{}
	rx.begin(obs, "User.name", 10)

	// When: two partitions report cumulative progress
	rx.onProgress(fuzzy.BatchReport{RunID: "a", Owners: 2, Rows: 20})
	rx.onProgress(fuzzy.BatchReport{RunID: "b", Owners: 3, Rows: 30})
	rx.onProgress(fuzzy.BatchReport{RunID: "a", Owners: 4, Rows: 40})

	// Then: only the increments are forwarded
	assert.Equal(t, 7, obs.added)
	assert.Equal(t, 70, obs.rows)
	assert.Equal(t, 7, rx.done)
}

func TestReindexer_RunReportsEveryField(t *testing.T) {
	dir := setupProject(t)
	rx := newReindexer()
	p := openTestProject(t, dir, fuzzy.WithProgress(rx.onProgress))
	fields, err := p.selectFields(nil)
	require.NoError(t, err)

	obs := &recordingObserver{}
	summary, err := rx.run(context.Background(), p, fields, 1, obs)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Fields)
	assert.Equal(t, 56, summary.Rows)
	assert.Zero(t, summary.Errors)
	assert.Equal(t, 2, obs.fields)
	assert.Equal(t, 6, obs.owners)
	assert.Equal(t, []string{"User.name", "User.email"}, obs.startedFields)
	assert.Equal(t, []string{"User.name", "User.email"}, obs.done)
	assert.Equal(t, 56, obs.rows)
}

func TestReindexer_ProgressObserverFeedsIndexStatus(t *testing.T) {
	dir := setupProject(t)
	rx := newReindexer()
	p := openTestProject(t, dir, fuzzy.WithProgress(rx.onProgress))
	fields, err := p.selectFields([]string{"User.name"})
	require.NoError(t, err)

	progress := async.NewIndexProgress()
	_, err = rx.run(context.Background(), p, fields, 2, progressObserver{progress})
	require.NoError(t, err)

	snap := progress.Snapshot()
	assert.Equal(t, 1, snap.FieldsTotal)
	assert.Equal(t, 1, snap.FieldsDone)
	assert.Equal(t, 3, snap.OwnersTotal)
	assert.Equal(t, 24, snap.Rows)
}

func TestReindexer_MissingSourceContinues(t *testing.T) {
	dir := setupProject(t)
	rx := newReindexer()
	p := openTestProject(t, dir, fuzzy.WithProgress(rx.onProgress))
	fields, err := p.selectFields(nil)
	require.NoError(t, err)
	fields[0].Source = filepath.Join(dir, "missing.jsonl")

	obs := &recordingObserver{}
	summary, err := rx.run(context.Background(), p, fields, 1, obs)

	require.Error(t, err)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.Fields)
	assert.Equal(t, []string{"User.name"}, obs.failed)
	assert.Equal(t, []string{"User.email"}, obs.done)
}

func TestReindexer_CancelledContext(t *testing.T) {
	dir := setupProject(t)
	rx := newReindexer()
	p := openTestProject(t, dir, fuzzy.WithProgress(rx.onProgress))
	fields, err := p.selectFields(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rx.run(ctx, p, fields, 1, &recordingObserver{})

	assert.True(t, errors.Is(err, context.Canceled))
}
