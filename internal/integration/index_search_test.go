package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fuzzidx/internal/index"
	"github.com/Aman-CERP/fuzzidx/internal/source"
	"github.com/Aman-CERP/fuzzidx/internal/store"
	"github.com/Aman-CERP/fuzzidx/pkg/fuzzy"
)

// Integration Tests - These run the full flow from a JSON Lines source
// through a storage backend to ranked matches.

const users = `{"id":"1","name":"hello world"}
{"id":"2","name":"goodbye"}
{"id":"3","name":"yellow"}
{"id":"4","name":"   "}
`

// writeUsers writes the fixture file and returns its path.
func writeUsers(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "users.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type backendCase struct {
	name    string
	backend store.Backend
	driver  string
}

var backends = []backendCase{
	{name: "sqlite modernc", backend: store.BackendSQLite, driver: store.DriverModernc},
	{name: "sqlite mattn", backend: store.BackendSQLite, driver: store.DriverMattn},
	{name: "bleve", backend: store.BackendBleve},
	{name: "memory", backend: store.BackendMemory},
}

// openBackend opens a store of the given kind in a temp dir. The cgo driver
// is skipped when the binary was built without cgo.
func openBackend(t *testing.T, bc backendCase) store.Store {
	t.Helper()
	cfg := store.DefaultConfig()
	if bc.driver != "" {
		cfg.Driver = bc.driver
	}
	st, err := store.Open(t.TempDir(), cfg, string(bc.backend))
	if err != nil && bc.driver == store.DriverMattn {
		t.Skipf("mattn driver unavailable: %v", err)
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestIntegration_BulkUpdateAndFind(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, bc := range backends {
		t.Run(bc.name, func(t *testing.T) {
			ctx := context.Background()

			// Given: a source file and a registry over the backend
			path := writeUsers(t, t.TempDir(), users)
			src, err := source.NewJSONL(path, "id", "name")
			require.NoError(t, err)

			reg, err := fuzzy.NewRegistry(openBackend(t, bc), fuzzy.WithBatchSize(2))
			require.NoError(t, err)
			fields, err := reg.Searchable("User", "name")
			require.NoError(t, err)

			// When: bulk indexing the file
			report, err := fields[0].BulkUpdate(ctx, src)

			// Then: every owner is visited and the blank one writes nothing
			require.NoError(t, err)
			assert.Equal(t, 4, report.Owners)
			assert.Equal(t, 1, report.BlankOwners)
			assert.Equal(t, 24, report.Rows)
			assert.Equal(t, 2, report.Chunks)

			// And: "hello" ranks "hello world" over "yellow"
			res, err := fields[0].Find(ctx, "hello")
			require.NoError(t, err)
			require.Len(t, res, 2)
			assert.Equal(t, "1", res[0].OwnerID)
			assert.InDelta(t, 5.0/11.0, res[0].Score, 1e-9)
			assert.Equal(t, "3", res[1].OwnerID)
			assert.InDelta(t, 2.0/6.0, res[1].Score, 1e-9)
		})
	}
}

func TestIntegration_UpdateForgetStats(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, bc := range backends {
		t.Run(bc.name, func(t *testing.T) {
			ctx := context.Background()
			reg, err := fuzzy.NewRegistry(openBackend(t, bc))
			require.NoError(t, err)
			fields, err := reg.Searchable("User", "name", "email")
			require.NoError(t, err)
			name, email := fields[0], fields[1]

			// Given: one owner indexed on two fields
			_, err = name.Update(ctx, "1", "hello world")
			require.NoError(t, err)
			_, err = email.Update(ctx, "1", "hello@example.com")
			require.NoError(t, err)

			// When: the name changes
			rows, err := name.Update(ctx, "1", "goodbye")
			require.NoError(t, err)
			assert.Equal(t, 7, rows)

			// Then: the old value no longer matches on name
			res, err := name.Find(ctx, "hello world", fuzzy.WithMinScore(0.5))
			require.NoError(t, err)
			assert.Empty(t, res)

			stats, err := reg.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 24, stats.Rows)
			assert.Equal(t, string(bc.backend), stats.Backend)

			// When: forgetting the owner across fields
			removed, err := reg.Forget(ctx, "User", "1")
			require.NoError(t, err)
			assert.Equal(t, 24, removed)

			stats, err = reg.Stats(ctx)
			require.NoError(t, err)
			assert.Zero(t, stats.Rows)
		})
	}
}

func TestIntegration_ParallelMatchesSequential(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	owners := []fuzzy.Owner{
		{ID: "1", Text: "hello world"},
		{ID: "2", Text: "goodbye"},
		{ID: "3", Text: "yellow"},
		{ID: "4", Text: "help wanted"},
		{ID: "5", Text: ""},
	}

	seq, err := fuzzy.NewRegistry(openBackend(t, backends[0]))
	require.NoError(t, err)
	seqFields, err := seq.Searchable("User", "name")
	require.NoError(t, err)
	_, err = seqFields[0].BulkUpdate(ctx, fuzzy.SliceSource(owners))
	require.NoError(t, err)

	par, err := fuzzy.NewRegistry(openBackend(t, backends[0]))
	require.NoError(t, err)
	parFields, err := par.Searchable("User", "name")
	require.NoError(t, err)
	report, err := parFields[0].BulkUpdateParallel(ctx, index.PartitionByID(owners, 3), 3)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Owners)

	want, err := seqFields[0].Find(ctx, "hel", fuzzy.WithLimit(0))
	require.NoError(t, err)
	got, err := parFields[0].Find(ctx, "hel", fuzzy.WithLimit(0))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
