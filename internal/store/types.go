// Package store persists trigram index rows and answers aggregation queries
// over them. Backends: SQLite (default), Bleve, and an in-memory store for tests.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Record is one persisted trigram occurrence for an owner field.
type Record struct {
	OwnerType string  `json:"owner_type"`
	OwnerID   string  `json:"owner_id"`
	Field     string  `json:"field"`
	Trigram   string  `json:"trigram"`
	Score     float64 `json:"score"`
}

// Key returns the owner key the record belongs to.
func (r Record) Key() OwnerKey {
	return OwnerKey{OwnerType: r.OwnerType, OwnerID: r.OwnerID, Field: r.Field}
}

// OwnerKey identifies the row set of one field of one owner.
type OwnerKey struct {
	OwnerType string
	OwnerID   string
	Field     string
}

// String renders the key as type/id/field for logs.
func (k OwnerKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.OwnerType, k.OwnerID, k.Field)
}

// QueryTerm is one distinct query trigram and its summed query-side weight.
type QueryTerm struct {
	Trigram string
	Weight  float64
}

// MatchQuery selects and ranks owners of one owner type and field.
type MatchQuery struct {
	OwnerType string
	Field     string
	Terms     []QueryTerm

	// Weighted multiplies each index score by the term weight.
	// Otherwise index scores are summed.
	Weighted bool

	// OwnerIDs restricts candidates when non-empty.
	OwnerIDs []string

	// MinScore drops owners whose aggregate is below it.
	MinScore float64

	Limit  int
	Offset int
}

// Match is one ranked owner.
type Match struct {
	OwnerID string  `json:"owner_id"`
	Score   float64 `json:"score"`
	Matched int     `json:"matched"` // matched index rows
}

// Stats describes index contents.
type Stats struct {
	Rows       int            `json:"rows"`
	Owners     int            `json:"owners"`
	OwnerTypes map[string]int `json:"owner_types"` // rows per owner type
	Backend    string         `json:"backend"`
}

// Capabilities describes write features of a backend, detected once at open.
type Capabilities struct {
	// MultiRowInsert reports whether Tx.InsertMany is supported.
	MultiRowInsert bool

	// MaxRowsPerInsert bounds the rows of a single InsertMany call.
	// Zero means unbounded.
	MaxRowsPerInsert int
}

// Store is the storage collaborator of the index core.
type Store interface {
	// Update runs fn inside one transaction.
	// Changes made through tx become visible to readers only if fn returns nil.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// Match aggregates rows sharing q.Terms per owner and returns them ranked
	// by score descending then owner ID ascending.
	// No overlap returns an empty slice.
	Match(ctx context.Context, q MatchQuery) ([]Match, error)

	// Records returns the rows of one owner field in insertion order.
	Records(ctx context.Context, key OwnerKey) ([]Record, error)

	// Stats returns index statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Capabilities reports the backend's write features.
	Capabilities() Capabilities

	// Close releases resources. Safe to call more than once.
	Close() error
}

// Tx is the write side of one Store.Update call.
type Tx interface {
	// Delete removes every row of key.
	// An empty key.Field removes the rows of all fields of the owner.
	Delete(ctx context.Context, key OwnerKey) (int, error)

	// InsertOne writes a single row.
	InsertOne(ctx context.Context, rec Record) error

	// InsertMany writes rows with as few statements as the backend allows.
	// Returns ErrBulkUnsupported when Capabilities().MultiRowInsert is false.
	InsertMany(ctx context.Context, recs []Record) error
}

// Sentinel errors.
var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrBulkUnsupported is returned by InsertMany on backends without
	// multi-row inserts.
	ErrBulkUnsupported = errors.New("multi-row insert not supported")

	// ErrTooManyRows is returned when InsertMany exceeds MaxRowsPerInsert.
	ErrTooManyRows = errors.New("too many rows for a single insert")
)

// Config holds backend options.
type Config struct {
	// Driver selects the SQLite driver: "sqlite" (modernc, default) or
	// "sqlite3" (mattn, cgo).
	Driver string

	// BulkInsert is "auto" (detect), "on" or "off".
	BulkInsert string

	// MaxRowsPerInsert caps rows per multi-row statement. Zero derives it
	// from the backend limits.
	MaxRowsPerInsert int

	// CacheMB is the SQLite page cache size.
	CacheMB int
}

// DefaultConfig returns default backend options.
func DefaultConfig() Config {
	return Config{
		Driver:     DriverModernc,
		BulkInsert: BulkAuto,
		CacheMB:    64,
	}
}

// BulkInsert modes.
const (
	BulkAuto = "auto"
	BulkOn   = "on"
	BulkOff  = "off"
)

// validate checks one record before it is written.
func validateRecord(rec Record) error {
	if rec.OwnerType == "" || rec.OwnerID == "" || rec.Field == "" {
		return fmt.Errorf("record %s: incomplete owner key", rec.Key())
	}
	if len([]rune(rec.Trigram)) != 3 {
		return fmt.Errorf("record %s: trigram %q must be 3 characters", rec.Key(), rec.Trigram)
	}
	if rec.Score < 0 {
		return fmt.Errorf("record %s: negative score %v", rec.Key(), rec.Score)
	}
	return nil
}
