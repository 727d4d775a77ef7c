package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteCapabilities(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		config    Config
		wantBulk  bool
		wantMax   int
		wantError bool
	}{
		{name: "modern engine", version: "3.45.1", config: Config{BulkInsert: BulkAuto}, wantBulk: true, wantMax: 32766 / 5},
		{name: "before variable limit raise", version: "3.31.1", config: Config{BulkInsert: BulkAuto}, wantBulk: true, wantMax: 999 / 5},
		{name: "exactly 3.7.11", version: "3.7.11", config: Config{}, wantBulk: true, wantMax: 199},
		{name: "too old for multi-row", version: "3.7.10", config: Config{BulkInsert: BulkAuto}, wantBulk: false, wantMax: 199},
		{name: "forced off", version: "3.45.1", config: Config{BulkInsert: BulkOff}, wantBulk: false, wantMax: 6553},
		{name: "forced on", version: "3.45.1", config: Config{BulkInsert: BulkOn}, wantBulk: true, wantMax: 6553},
		{name: "forced on but unsupported", version: "3.6.0", config: Config{BulkInsert: BulkOn}, wantError: true},
		{name: "config caps rows", version: "3.45.1", config: Config{MaxRowsPerInsert: 50}, wantBulk: true, wantMax: 50},
		{name: "unknown mode", version: "3.45.1", config: Config{BulkInsert: "sometimes"}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, err := sqliteCapabilities(tt.version, tt.config)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBulk, caps.MultiRowInsert)
			assert.Equal(t, tt.wantMax, caps.MaxRowsPerInsert)
		})
	}
}

func TestVersionAtLeast(t *testing.T) {
	assert.True(t, versionAtLeast("3.7.11", 3, 7, 11))
	assert.True(t, versionAtLeast("3.8", 3, 7, 11))
	assert.True(t, versionAtLeast("4.0.0", 3, 32, 0))
	assert.False(t, versionAtLeast("3.7.2", 3, 7, 11))
	assert.False(t, versionAtLeast("2.99.99", 3, 0, 0))
	assert.False(t, versionAtLeast("", 3, 0, 0))
}

func TestNewSQLiteStore_DetectsCapabilities(t *testing.T) {
	s, err := NewSQLiteStore("", DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.NotEmpty(t, s.Version())
	assert.True(t, s.Capabilities().MultiRowInsert)
	assert.Greater(t, s.Capabilities().MaxRowsPerInsert, 0)
}

func TestNewSQLiteStore_UnknownDriver(t *testing.T) {
	_, err := NewSQLiteStore("", Config{Driver: "postgres"})
	assert.Error(t, err)
}

func TestSQLiteStore_InsertManyRespectsRowLimit(t *testing.T) {
	// Given: a store capped at two rows per statement
	s, err := NewSQLiteStore("", Config{MaxRowsPerInsert: 2})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	// When: inserting three rows at once
	err = s.Update(context.Background(), func(tx Tx) error {
		return tx.InsertMany(context.Background(), []Record{rec("1", "abc", 0.3), rec("1", "bcd", 0.3), rec("1", "cde", 0.4)})
	})

	// Then: the statement is refused
	assert.ErrorIs(t, err, ErrTooManyRows)
}

func TestSQLiteStore_InsertManyUnsupportedWhenOff(t *testing.T) {
	s, err := NewSQLiteStore("", Config{BulkInsert: BulkOff})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	err = s.Update(context.Background(), func(tx Tx) error {
		return tx.InsertMany(context.Background(), []Record{rec("1", "abc", 1)})
	})
	assert.ErrorIs(t, err, ErrBulkUnsupported)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	// Given: rows written to a file
	path := filepath.Join(t.TempDir(), "trigrams.db")
	s, err := NewSQLiteStore(path, DefaultConfig())
	require.NoError(t, err)
	insert(t, s, rec("1", "abc", 1))
	require.NoError(t, s.Close())

	// When: reopening
	s, err = NewSQLiteStore(path, DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	// Then: rows are still there
	got, err := s.Records(context.Background(), key("1"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteStore_RecoversFromCorruptFile(t *testing.T) {
	// Given: garbage at the database path
	path := filepath.Join(t.TempDir(), "trigrams.db")
	require.NoError(t, os.WriteFile(path, []byte("definitely not sqlite"), 0644))

	// When: opening
	s, err := NewSQLiteStore(path, DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	// Then: a fresh empty index is usable
	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Rows)
	insert(t, s, rec("1", "abc", 1))
}

func TestBleveStore_PersistsSequenceAcrossReopen(t *testing.T) {
	// Given: rows written to an on-disk index
	path := filepath.Join(t.TempDir(), "trigrams.bleve")
	s, err := NewBleveStore(path, DefaultConfig())
	require.NoError(t, err)
	insert(t, s, rec("1", "abc", 0.5), rec("1", "bcd", 0.5))
	require.NoError(t, s.Close())

	// When: reopening and appending
	s, err = NewBleveStore(path, DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	insert(t, s, rec("1", "cde", 0.5))

	// Then: insertion order spans both sessions
	got, err := s.Records(context.Background(), key("1"))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "cde", got[2].Trigram)
}

func TestBleveStore_RecoversFromCorruptMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trigrams.bleve")
	require.NoError(t, os.MkdirAll(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "index_meta.json"), []byte("{"), 0644))

	s, err := NewBleveStore(path, DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	insert(t, s, rec("1", "abc", 1))
}
