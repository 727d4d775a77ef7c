package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/store"
	"github.com/Aman-CERP/fuzzidx/internal/trigram"
)

var errBoom = errors.New("boom")

// countingStore records how often the store is touched.
type countingStore struct {
	store.Store
	updates int
}

func (c *countingStore) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	c.updates++
	return c.Store.Update(ctx, fn)
}

// flakyStore fails the failOn-th Update after fn has run, so the
// transaction's changes must be rolled back.
type flakyStore struct {
	store.Store
	failOn  int
	updates int
}

func (f *flakyStore) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	f.updates++
	if f.updates != f.failOn {
		return f.Store.Update(ctx, fn)
	}
	return f.Store.Update(ctx, func(tx store.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return errBoom
	})
}

func stores(t *testing.T) map[string]store.Store {
	t.Helper()
	sqliteStore, err := store.NewSQLiteStore("", store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]store.Store{
		"memory-bulk": store.NewMemoryStore(store.WithMultiRowInsert(true)),
		"memory-row":  store.NewMemoryStore(store.WithMultiRowInsert(false)),
		"sqlite":      sqliteStore,
	}
}

func newSync(t *testing.T, st store.Store, opts ...Option) *Synchronizer {
	t.Helper()
	s, err := New(st, opts...)
	require.NoError(t, err)
	return s
}

// multiset renders rows as sorted "trigram:score" strings.
func multiset(recs []store.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = fmt.Sprintf("%q:%.12f", r.Trigram, r.Score)
	}
	sort.Strings(out)
	return out
}

func extracted(text string) []string {
	tgs := trigram.Extract(text)
	out := make([]string, len(tgs))
	for i, t := range tgs {
		out[i] = fmt.Sprintf("%q:%.12f", t.Text, t.Score)
	}
	sort.Strings(out)
	return out
}

func rowsOf(t *testing.T, st store.Store, id string) []store.Record {
	t.Helper()
	recs, err := st.Records(context.Background(), store.OwnerKey{OwnerType: "User", OwnerID: id, Field: "name"})
	require.NoError(t, err)
	return recs
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilStore)
}

func TestNew_SelectsStrategyOnce(t *testing.T) {
	tests := []struct {
		name    string
		caps    bool
		mode    WriteMode
		want    string
		wantErr bool
	}{
		{name: "auto with bulk support", caps: true, mode: WriteAuto, want: "bulk"},
		{name: "auto without bulk support", caps: false, mode: WriteAuto, want: "row"},
		{name: "forced row", caps: true, mode: WriteRow, want: "row"},
		{name: "forced bulk", caps: true, mode: WriteBulk, want: "bulk"},
		{name: "forced bulk unsupported", caps: false, mode: WriteBulk, wantErr: true},
		{name: "unknown", caps: true, mode: "sideways", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(store.NewMemoryStore(store.WithMultiRowInsert(tt.caps)), WithWriteMode(tt.mode))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, fzerrors.ErrCodeConfigInvalid, fzerrors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Strategy())
		})
	}
}

func TestParseWriteMode(t *testing.T) {
	for in, want := range map[string]WriteMode{"": WriteAuto, "auto": WriteAuto, "on": WriteBulk, "bulk": WriteBulk, "off": WriteRow, "row": WriteRow} {
		got, err := ParseWriteMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseWriteMode("maybe")
	assert.Error(t, err)
}

func TestReindexOne_RoundTrip(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			// Given: a synchronizer
			s := newSync(t, st)

			// When: indexing a value
			n, err := s.ReindexOne(context.Background(), "User", "1", "name", "Hello World")
			require.NoError(t, err)

			// Then: stored rows equal the extraction as a multiset
			assert.Equal(t, 11, n)
			assert.Equal(t, extracted("Hello World"), multiset(rowsOf(t, st, "1")))
		})
	}
}

func TestReindexOne_Idempotent(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newSync(t, st)
			ctx := context.Background()

			_, err := s.ReindexOne(ctx, "User", "1", "name", "banana")
			require.NoError(t, err)
			first := multiset(rowsOf(t, st, "1"))

			_, err = s.ReindexOne(ctx, "User", "1", "name", "banana")
			require.NoError(t, err)

			assert.Equal(t, first, multiset(rowsOf(t, st, "1")))
		})
	}
}

func TestReindexOne_ReplacesPreviousValue(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newSync(t, st)
			ctx := context.Background()

			_, err := s.ReindexOne(ctx, "User", "1", "name", "alpha")
			require.NoError(t, err)
			_, err = s.ReindexOne(ctx, "User", "1", "name", "omega")
			require.NoError(t, err)

			assert.Equal(t, extracted("omega"), multiset(rowsOf(t, st, "1")))
		})
	}
}

func TestReindexOne_BlankClearsRows(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newSync(t, st)
			ctx := context.Background()

			_, err := s.ReindexOne(ctx, "User", "1", "name", "alpha")
			require.NoError(t, err)

			n, err := s.ReindexOne(ctx, "User", "1", "name", "   ")
			require.NoError(t, err)

			assert.Equal(t, 0, n)
			assert.Empty(t, rowsOf(t, st, "1"))
		})
	}
}

func TestReindexOne_ValidatesBeforeStorage(t *testing.T) {
	tests := []struct {
		name      string
		ownerType string
		id        string
		field     string
	}{
		{name: "no owner type", id: "1", field: "name"},
		{name: "no owner id", ownerType: "User", field: "name"},
		{name: "no field", ownerType: "User", id: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := &countingStore{Store: store.NewMemoryStore()}
			s := newSync(t, cs)

			_, err := s.ReindexOne(context.Background(), tt.ownerType, tt.id, tt.field, "text")

			assert.True(t, fzerrors.IsValidation(err))
			assert.Equal(t, 0, cs.updates)
		})
	}
}

func TestReindexOne_StorageErrorIsWrapped(t *testing.T) {
	st := &flakyStore{Store: store.NewMemoryStore(), failOn: 1}
	s := newSync(t, st)

	_, err := s.ReindexOne(context.Background(), "User", "1", "name", "text")

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, fzerrors.ErrCodeStorageWrite, fzerrors.GetCode(err))
}

// busyStore reports lock contention on every write.
type busyStore struct {
	store.Store
}

func (busyStore) Update(context.Context, func(tx store.Tx) error) error {
	return fzerrors.New(fzerrors.ErrCodeStorageBusy, "commit transaction", errBoom)
}

func TestReindexOne_BusyStorageStaysRetryable(t *testing.T) {
	// Given: a store another writer keeps locked
	s := newSync(t, busyStore{Store: store.NewMemoryStore()})

	// When: reindexing and forgetting
	_, reindexErr := s.ReindexOne(context.Background(), "User", "1", "name", "text")
	_, forgetErr := s.Forget(context.Background(), "User", "1")

	// Then: both keep the busy code so callers retry
	for _, err := range []error{reindexErr, forgetErr} {
		require.Error(t, err)
		assert.Equal(t, fzerrors.ErrCodeStorageBusy, fzerrors.GetCode(err))
		assert.True(t, fzerrors.IsRetryable(err))
		assert.ErrorIs(t, err, errBoom)
	}
}

func TestReindexBatch_MatchesReindexOne(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			// Given: the same owners indexed both ways under different fields
			owners := SliceSource{{ID: "A", Text: "hello world"}, {ID: "B", Text: "goodbye"}}
			s := newSync(t, st)
			ctx := context.Background()

			_, err := s.ReindexBatch(ctx, "User", "name", owners)
			require.NoError(t, err)
			for _, o := range owners {
				_, err := s.ReindexOne(ctx, "User", o.ID, "alias", o.Text)
				require.NoError(t, err)
			}

			// Then: identical row sets per owner
			for _, o := range owners {
				batch := rowsOf(t, st, o.ID)
				one, err := st.Records(ctx, store.OwnerKey{OwnerType: "User", OwnerID: o.ID, Field: "alias"})
				require.NoError(t, err)
				assert.Equal(t, multiset(one), multiset(batch), o.ID)
			}
		})
	}
}

func TestReindexBatch_BulkAndRowPathsAgree(t *testing.T) {
	owners := SliceSource{
		{ID: "1", Text: "Ada Lovelace"},
		{ID: "2", Text: "Alan Turing"},
		{ID: "3", Text: ""},
		{ID: "4", Text: "Grace Hopper"},
		{ID: "5", Text: "aaaa"},
	}

	bulkStore := store.NewMemoryStore(store.WithMultiRowInsert(true), store.WithMaxRowsPerInsert(4))
	rowStore := store.NewMemoryStore(store.WithMultiRowInsert(false))
	bulk := newSync(t, bulkStore, WithBatchSize(2))
	row := newSync(t, rowStore, WithBatchSize(2))
	require.Equal(t, "bulk", bulk.Strategy())
	require.Equal(t, "row", row.Strategy())

	bulkReport, err := bulk.ReindexBatch(context.Background(), "User", "name", owners)
	require.NoError(t, err)
	rowReport, err := row.ReindexBatch(context.Background(), "User", "name", owners)
	require.NoError(t, err)

	assert.Equal(t, bulkReport.Rows, rowReport.Rows)
	assert.Less(t, bulkReport.Statements, rowReport.Statements)
	for _, o := range owners {
		assert.Equal(t, multiset(rowsOf(t, rowStore, o.ID)), multiset(rowsOf(t, bulkStore, o.ID)), o.ID)
	}
}

func TestReindexBatch_BlankOwnerDoesNotAbortChunk(t *testing.T) {
	// Given: a blank owner in the middle of one chunk
	st := store.NewMemoryStore()
	s := newSync(t, st, WithBatchSize(10))
	owners := SliceSource{{ID: "1", Text: "first"}, {ID: "2", Text: "  "}, {ID: "3", Text: "third"}}

	// When: reindexing
	report, err := s.ReindexBatch(context.Background(), "User", "name", owners)
	require.NoError(t, err)

	// Then: owners after the blank one are indexed
	assert.Equal(t, 3, report.Owners)
	assert.Equal(t, 1, report.BlankOwners)
	assert.Empty(t, rowsOf(t, st, "2"))
	assert.Equal(t, extracted("third"), multiset(rowsOf(t, st, "3")))
}

func TestReindexBatch_FailedChunkKeepsEarlierChunks(t *testing.T) {
	// Given: old rows for every owner and a store failing the second chunk
	mem := store.NewMemoryStore()
	seed := newSync(t, mem)
	for _, id := range []string{"1", "2", "3", "4"} {
		_, err := seed.ReindexOne(context.Background(), "User", id, "name", "old")
		require.NoError(t, err)
	}
	flaky := &flakyStore{Store: mem, failOn: 2}
	s := newSync(t, flaky, WithBatchSize(2))
	owners := SliceSource{{ID: "1", Text: "new"}, {ID: "2", Text: "new"}, {ID: "3", Text: "new"}, {ID: "4", Text: "new"}}

	// When: reindexing
	report, err := s.ReindexBatch(context.Background(), "User", "name", owners)

	// Then: chunk one is committed, chunk two untouched
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, extracted("new"), multiset(rowsOf(t, mem, "1")))
	assert.Equal(t, extracted("new"), multiset(rowsOf(t, mem, "2")))
	assert.Equal(t, extracted("old"), multiset(rowsOf(t, mem, "3")))
	assert.Equal(t, extracted("old"), multiset(rowsOf(t, mem, "4")))

	// And: re-running on a healthy store completes the job
	_, err = newSync(t, mem, WithBatchSize(2)).ReindexBatch(context.Background(), "User", "name", owners)
	require.NoError(t, err)
	assert.Equal(t, extracted("new"), multiset(rowsOf(t, mem, "4")))
}

func TestReindexBatch_CancelledContextStopsChunks(t *testing.T) {
	st := store.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	var seen int
	s := newSync(t, st, WithBatchSize(1), WithProgress(func(r BatchReport) {
		seen = r.Chunks
		if r.Chunks == 1 {
			cancel()
		}
	}))

	report, err := s.ReindexBatch(ctx, "User", "name", SliceSource{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}, {ID: "3", Text: "c"}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, 1, seen)
	assert.Empty(t, rowsOf(t, st, "2"))
}

func TestReindexBatch_DuplicateOwnerInChunk(t *testing.T) {
	st := store.NewMemoryStore()
	s := newSync(t, st)

	report, err := s.ReindexBatch(context.Background(), "User", "name", SliceSource{{ID: "1", Text: "first"}, {ID: "1", Text: "second"}})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Owners)
	assert.Equal(t, extracted("second"), multiset(rowsOf(t, st, "1")))
}

func TestReindexBatch_Validation(t *testing.T) {
	s := newSync(t, store.NewMemoryStore())

	_, err := s.ReindexBatch(context.Background(), "", "name", SliceSource{})
	assert.True(t, fzerrors.IsValidation(err))

	_, err = s.ReindexBatch(context.Background(), "User", "name", nil)
	assert.True(t, fzerrors.IsValidation(err))

	_, err = s.ReindexBatch(context.Background(), "User", "name", SliceSource{{ID: "", Text: "x"}})
	assert.True(t, fzerrors.IsValidation(err))
}

func TestReindexBatch_ReportCountsChunks(t *testing.T) {
	s := newSync(t, store.NewMemoryStore(), WithBatchSize(2))
	owners := make(SliceSource, 5)
	for i := range owners {
		owners[i] = Owner{ID: fmt.Sprint(i), Text: "abc"}
	}

	report, err := s.ReindexBatch(context.Background(), "User", "name", owners)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 5, report.Owners)
	assert.Equal(t, 15, report.Rows)
	assert.NotEmpty(t, report.RunID)
}

func TestForget(t *testing.T) {
	st := store.NewMemoryStore()
	s := newSync(t, st)
	ctx := context.Background()
	_, err := s.ReindexOne(ctx, "User", "1", "name", "abc")
	require.NoError(t, err)
	_, err = s.ReindexOne(ctx, "User", "1", "email", "a@b")
	require.NoError(t, err)

	t.Run("one field", func(t *testing.T) {
		n, err := s.Forget(ctx, "User", "1", "email")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.NotEmpty(t, rowsOf(t, st, "1"))
	})

	t.Run("all fields", func(t *testing.T) {
		n, err := s.Forget(ctx, "User", "1")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Empty(t, rowsOf(t, st, "1"))
	})

	t.Run("validation", func(t *testing.T) {
		_, err := s.Forget(ctx, "User", "")
		assert.True(t, fzerrors.IsValidation(err))
	})
}
