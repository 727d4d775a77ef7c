package index

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/fuzzidx/internal/store"
)

// WriteMode selects how a chunk's rows reach the store.
type WriteMode string

const (
	// WriteAuto uses multi-row inserts when the store supports them.
	WriteAuto WriteMode = "auto"
	// WriteBulk always uses multi-row inserts.
	WriteBulk WriteMode = "bulk"
	// WriteRow inserts one row per call.
	WriteRow WriteMode = "row"
)

// ParseWriteMode maps config values to a WriteMode. The storage names
// "on" and "off" are accepted as aliases of bulk and row.
func ParseWriteMode(s string) (WriteMode, error) {
	switch s {
	case "", "auto":
		return WriteAuto, nil
	case "bulk", "on":
		return WriteBulk, nil
	case "row", "off":
		return WriteRow, nil
	default:
		return "", fmt.Errorf("unknown write mode: %s (valid options: auto, bulk, row)", s)
	}
}

// writeStrategy writes already extracted rows inside a transaction.
// Both implementations leave identical row sets behind.
type writeStrategy interface {
	name() string
	write(ctx context.Context, tx store.Tx, recs []store.Record) (statements int, err error)
}

// selectStrategy picks the strategy once, from mode and store capabilities.
func selectStrategy(mode WriteMode, caps store.Capabilities) (writeStrategy, error) {
	switch mode {
	case WriteAuto, "":
		if caps.MultiRowInsert {
			return bulkWriter{maxRows: caps.MaxRowsPerInsert}, nil
		}
		return rowWriter{}, nil
	case WriteBulk:
		if !caps.MultiRowInsert {
			return nil, fmt.Errorf("bulk writes requested but the store lacks multi-row inserts")
		}
		return bulkWriter{maxRows: caps.MaxRowsPerInsert}, nil
	case WriteRow:
		return rowWriter{}, nil
	default:
		return nil, fmt.Errorf("unknown write mode: %s", mode)
	}
}

// bulkWriter sends rows in as few InsertMany calls as maxRows allows.
type bulkWriter struct {
	maxRows int
}

func (bulkWriter) name() string { return string(WriteBulk) }

func (w bulkWriter) write(ctx context.Context, tx store.Tx, recs []store.Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	size := w.maxRows
	if size <= 0 {
		size = len(recs)
	}

	var statements int
	for start := 0; start < len(recs); start += size {
		end := start + size
		if end > len(recs) {
			end = len(recs)
		}
		if err := tx.InsertMany(ctx, recs[start:end]); err != nil {
			return statements, err
		}
		statements++
	}
	return statements, nil
}

// rowWriter inserts one row per statement.
type rowWriter struct{}

func (rowWriter) name() string { return string(WriteRow) }

func (rowWriter) write(ctx context.Context, tx store.Tx, recs []store.Record) (int, error) {
	for i, rec := range recs {
		if err := tx.InsertOne(ctx, rec); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}
