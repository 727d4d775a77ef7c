package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fuzzidx/internal/watcher"
)

func TestNeedsReindex(t *testing.T) {
	dir := setupProject(t)
	check := func() bool {
		projectDir = dir
		root, cfg, err := loadConfig()
		require.NoError(t, err)
		p, err := openProject(root, cfg)
		require.NoError(t, err)
		defer func() { _ = p.Close() }()
		return needsReindex(context.Background(), p)
	}

	// Given: nothing indexed yet
	assert.True(t, check())

	// When: the project is indexed
	_, err := runCmd(t, dir, "index", "--no-tui")
	require.NoError(t, err)
	assert.False(t, check())

	// Then: a leftover marker forces a rebuild
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fuzzidx", "reindex.incomplete"), nil, 0o644))
	assert.True(t, check())
}

func TestStartWatching_AppliesSourceChanges(t *testing.T) {
	// Given: an indexed project being watched
	dir := setupProject(t)
	_, err := runCmd(t, dir, "index", "--no-tui")
	require.NoError(t, err)

	p := openTestProject(t, dir)
	fields, err := p.selectFields(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan watcher.Result, 16)
	stop, _, err := startWatching(ctx, p, fields, false, func(r watcher.Result) {
		select {
		case results <- r:
		default:
		}
	})
	require.NoError(t, err)
	defer stop()

	// When: owner 2 is renamed in the source file
	src := filepath.Join(dir, "data", "users.jsonl")
	changed := `{"id":"1","name":"hello world","email":"hello@example.com"}
{"id":"2","name":"hello again","email":"bye@example.com"}
{"id":"3","name":"yellow"}
`
	rewrite := func() {
		tmp := src + ".tmp"
		require.NoError(t, os.WriteFile(tmp, []byte(changed), 0o644))
		require.NoError(t, os.Rename(tmp, src))
	}

	// Then: the name field reports one updated owner
	time.Sleep(100 * time.Millisecond)
	rewrite()
	r := waitForResult(t, results, "User.name", rewrite)
	require.NoError(t, r.Err)
	assert.Equal(t, 1, r.Updated)
	assert.Zero(t, r.Removed)

	res, err := p.reg.Find(ctx, "User", "hello again")
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "2", res[0].OwnerID)
}

// waitForResult waits for a result of binding name that updated something,
// calling retry periodically in case the first change was missed.
func waitForResult(t *testing.T, results <-chan watcher.Result, name string, retry func()) watcher.Result {
	t.Helper()
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case r := <-results:
			if r.Name == name && r.Updated > 0 {
				return r
			}
		case <-tick.C:
			retry()
		case <-deadline:
			t.Fatalf("no watch result for %s", name)
			return watcher.Result{}
		}
	}
}
