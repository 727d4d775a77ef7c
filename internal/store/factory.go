package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend names a storage implementation.
type Backend string

const (
	// BackendSQLite stores rows in one SQLite table (default).
	// WAL mode allows readers in other processes.
	BackendSQLite Backend = "sqlite"

	// BackendBleve stores rows as Bleve documents.
	// Bleve holds an exclusive file lock, so one process at a time.
	BackendBleve Backend = "bleve"

	// BackendMemory keeps rows in memory only.
	BackendMemory Backend = "memory"
)

// indexBaseName is the file name, without extension, of on-disk indexes.
const indexBaseName = "trigrams"

// NewStoreWithBackend opens a Store of the given backend.
// basePath has no extension; ".db" or ".bleve" is added per backend.
//
// backend options:
//   - "sqlite" (default): SQLite with WAL mode
//   - "bleve": Bleve v2, single process only
//   - "memory": process memory, nothing persisted
//
// If basePath is empty, disk backends run in memory.
func NewStoreWithBackend(basePath string, config Config, backend string) (Store, error) {
	switch backend {
	case string(BackendSQLite), "":
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteStore(path, config)

	case string(BackendBleve):
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveStore(path, config)

	case string(BackendMemory):
		opts := []MemoryOption{WithMultiRowInsert(config.BulkInsert != BulkOff)}
		if config.MaxRowsPerInsert > 0 {
			opts = append(opts, WithMaxRowsPerInsert(config.MaxRowsPerInsert))
		}
		return NewMemoryStore(opts...), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (valid options: sqlite, bleve, memory)", backend)
	}
}

// Open opens the index stored under dataDir.
func Open(dataDir string, config Config, backend string) (Store, error) {
	if backend == string(BackendMemory) {
		return NewStoreWithBackend("", config, backend)
	}
	return NewStoreWithBackend(filepath.Join(dataDir, indexBaseName), config, backend)
}

// DetectBackend reports which backend an existing index under dataDir uses.
// Returns an empty string if no index exists.
func DetectBackend(dataDir string) Backend {
	basePath := filepath.Join(dataDir, indexBaseName)
	if fileExists(basePath + ".db") {
		return BackendSQLite
	}
	if dirExists(basePath + ".bleve") {
		return BackendBleve
	}
	return ""
}

// IndexPath returns the on-disk location of the index for backend.
func IndexPath(dataDir string, backend string) string {
	basePath := filepath.Join(dataDir, indexBaseName)
	switch backend {
	case string(BackendBleve):
		return basePath + ".bleve"
	case string(BackendMemory):
		return ""
	default:
		return basePath + ".db"
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
