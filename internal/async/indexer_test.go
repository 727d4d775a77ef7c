package async

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fuzzidx/internal/store"
)

func TestBackgroundIndexer_RunsAndBecomesReady(t *testing.T) {
	// Given an indexer with a quick task
	dir := t.TempDir()
	b := NewBackgroundIndexer(IndexerConfig{DataDir: dir})

	var ran atomic.Bool
	b.IndexFunc = func(ctx context.Context, p *IndexProgress) error {
		p.SetTotals(1, 3)
		p.StartField("User.name")
		p.AddOwners(3, 12)
		p.FieldDone()
		ran.Store(true)
		return nil
	}

	// When it runs to completion
	b.Start(context.Background())
	require.NoError(t, b.Wait())

	// Then progress is ready and no marker is left behind
	assert.True(t, ran.Load())
	assert.False(t, b.IsRunning())
	snap := b.Progress().Snapshot()
	assert.Equal(t, string(StatusReady), snap.Status)
	assert.Equal(t, 12, snap.Rows)
	assert.False(t, HasIncompleteRun(dir))
}

func TestBackgroundIndexer_HoldsLockAndMarkerWhileRunning(t *testing.T) {
	dir := t.TempDir()
	b := NewBackgroundIndexer(IndexerConfig{DataDir: dir})

	inside := make(chan struct{})
	release := make(chan struct{})
	b.IndexFunc = func(ctx context.Context, p *IndexProgress) error {
		close(inside)
		<-release
		return nil
	}

	b.Start(context.Background())
	<-inside

	assert.True(t, b.IsRunning())
	assert.True(t, HasIncompleteRun(dir))
	other := store.NewReindexLock(dir)
	acquired, err := other.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired, "reindex lock should be held")

	close(release)
	require.NoError(t, b.Wait())

	acquired, err = other.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	_ = other.Unlock()
}

func TestBackgroundIndexer_ErrorKeepsMarker(t *testing.T) {
	dir := t.TempDir()
	b := NewBackgroundIndexer(IndexerConfig{DataDir: dir})
	boom := errors.New("source unreadable")
	b.IndexFunc = func(context.Context, *IndexProgress) error { return boom }

	b.Start(context.Background())
	err := b.Wait()

	assert.ErrorIs(t, err, boom)
	snap := b.Progress().Snapshot()
	assert.Equal(t, string(StatusError), snap.Status)
	assert.Equal(t, "source unreadable", snap.ErrorMessage)
	assert.True(t, HasIncompleteRun(dir))
}

func TestBackgroundIndexer_StopCancelsRun(t *testing.T) {
	b := NewBackgroundIndexer(IndexerConfig{DataDir: t.TempDir()})
	b.IndexFunc = func(ctx context.Context, _ *IndexProgress) error {
		<-ctx.Done()
		return ctx.Err()
	}

	b.Start(context.Background())
	done := make(chan struct{})
	go func() {
		b.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.ErrorIs(t, b.Wait(), context.Canceled)
	assert.False(t, b.IsRunning())

	// A second Stop is a no-op.
	b.Stop()
}

func TestBackgroundIndexer_StopBeforeStart(t *testing.T) {
	b := NewBackgroundIndexer(IndexerConfig{DataDir: t.TempDir()})
	b.Stop()
	assert.False(t, b.IsRunning())
}

func TestBackgroundIndexer_StartOnce(t *testing.T) {
	b := NewBackgroundIndexer(IndexerConfig{DataDir: t.TempDir()})
	var runs atomic.Int32
	b.IndexFunc = func(context.Context, *IndexProgress) error {
		runs.Add(1)
		return nil
	}

	b.Start(context.Background())
	b.Start(context.Background())
	require.NoError(t, b.Wait())

	assert.Equal(t, int32(1), runs.Load())
}

func TestBackgroundIndexer_BadDataDir(t *testing.T) {
	// A regular file where the data directory should be
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	b := NewBackgroundIndexer(IndexerConfig{DataDir: filepath.Join(file, "data")})
	b.Start(context.Background())

	assert.Error(t, b.Wait())
	assert.Equal(t, string(StatusError), b.Progress().Snapshot().Status)
}
