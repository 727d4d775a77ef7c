package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInit(t *testing.T) {
	// Given: an empty project directory
	isolateEnv(t)
	dir := t.TempDir()

	// When: running config init
	out, err := runCmd(t, dir, "config", "init")

	// Then: the template is written
	require.NoError(t, err)
	assert.Contains(t, out, "Created project configuration")
	data, err := os.ReadFile(filepath.Join(dir, ".fuzzidx.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "fields:")
}

func TestConfigInit_ExistingFile(t *testing.T) {
	dir := setupProject(t)

	out, err := runCmd(t, dir, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	data, err := os.ReadFile(filepath.Join(dir, ".fuzzidx.yaml"))
	require.NoError(t, err)
	assert.Equal(t, testConfig, string(data))
}

func TestConfigInit_ForceKeepsBackup(t *testing.T) {
	dir := setupProject(t)

	out, err := runCmd(t, dir, "config", "init", "--force")

	require.NoError(t, err)
	assert.Contains(t, out, "Backup:")
	data, err := os.ReadFile(filepath.Join(dir, ".fuzzidx.yaml"))
	require.NoError(t, err)
	assert.NotEqual(t, testConfig, string(data))

	backups, err := filepath.Glob(filepath.Join(dir, ".fuzzidx.yaml.*"))
	require.NoError(t, err)
	assert.NotEmpty(t, backups)
}

func TestConfigShow_JSON(t *testing.T) {
	dir := setupProject(t)

	out, err := runCmd(t, dir, "config", "show", "--json")
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg), out)
	storage, ok := cfg["storage"].(map[string]any)
	require.True(t, ok, out)
	assert.Equal(t, "sqlite", storage["backend"])
}

func TestConfigShow_YAML(t *testing.T) {
	dir := setupProject(t)

	out, err := runCmd(t, dir, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "owner_type: User")
}

func TestConfigPath(t *testing.T) {
	dir := setupProject(t)

	out, err := runCmd(t, dir, "config", "path")

	require.NoError(t, err)
	assert.Contains(t, out, "user:")
	assert.Contains(t, out, ".fuzzidx.yaml")
}
